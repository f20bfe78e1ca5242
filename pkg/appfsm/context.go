package appfsm

import "encoding/json"

// ApplicationContext is the code-gen FSM's serializable context. It is
// mutated only by state actions (on_done, on_error, entry/exit) and
// read by invoke input_fn closures; its lifetime equals the FSM's.
type ApplicationContext struct {
	UserPrompt string `json:"user_prompt"`

	Draft *string `json:"draft,omitempty"`

	DraftFeedback    string            `json:"draft_feedback,omitempty"`
	HandlersFeedback map[string]string `json:"handlers_feedback,omitempty"`
	IndexFeedback    string            `json:"index_feedback,omitempty"`
	FrontendFeedback string            `json:"frontend_feedback,omitempty"`

	ServerFiles   map[string]string `json:"server_files,omitempty"`
	FrontendFiles map[string]string `json:"frontend_files,omitempty"`

	Error *string `json:"error,omitempty"`

	// NoChangesApplied is transient: set by the most recent actor's
	// result propagation and consulted by the tool processor's
	// fsm_status decision table, never persisted across a fresh send.
	NoChangesApplied bool `json:"-"`
}

// NewApplicationContext returns a fresh context for userPrompt.
func NewApplicationContext(userPrompt string) *ApplicationContext {
	return &ApplicationContext{
		UserPrompt:       userPrompt,
		HandlersFeedback: map[string]string{},
		ServerFiles:      map[string]string{},
		FrontendFiles:    map[string]string{},
	}
}

// Dump serializes c. Matches the fsm.MachineContext dump signature.
func Dump(value any) (json.RawMessage, error) {
	return json.Marshal(value)
}

// Load deserializes a previously dumped ApplicationContext.
func Load(data json.RawMessage) (any, error) {
	c := &ApplicationContext{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if c.HandlersFeedback == nil {
		c.HandlersFeedback = map[string]string{}
	}
	if c.ServerFiles == nil {
		c.ServerFiles = map[string]string{}
	}
	if c.FrontendFiles == nil {
		c.FrontendFiles = map[string]string{}
	}
	return c, nil
}
