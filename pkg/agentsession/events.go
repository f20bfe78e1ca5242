// Package agentsession drives one request's FSM tool-call loop to
// completion: restore from a checkpoint, snapshot before/after, convert
// the request's conversation, step the processor until it pauses, and
// emit SSE events as it goes (see spec §4.6/§6.1).
package agentsession

// Status is the outer SSE status field.
type Status string

const (
	StatusRunning Status = "running"
	StatusIdle    Status = "idle"
)

// MessageKind classifies the assistant message carried by one SSE
// event.
type MessageKind string

const (
	KindStageResult       MessageKind = "StageResult"
	KindReviewResult      MessageKind = "ReviewResult"
	KindRefinementRequest MessageKind = "RefinementRequest"
	KindRuntimeError      MessageKind = "RuntimeError"
	KindKeepAlive         MessageKind = "KeepAlive"
)

// AgentState wraps a persisted FSM checkpoint as it appears on the
// wire, under the agentState field.
type AgentState struct {
	FSMState any `json:"fsm_state"`
}

// Message is the SSE event's nested assistant message.
type Message struct {
	Role           string      `json:"role"`
	Kind           MessageKind `json:"kind"`
	Content        string      `json:"content"`
	AgentState     *AgentState `json:"agentState,omitempty"`
	UnifiedDiff    *string     `json:"unifiedDiff,omitempty"`
	AppName        *string     `json:"app_name,omitempty"`
	CommitMessage  *string     `json:"commit_message,omitempty"`
}

// Event is one `data: <json>\n\n` SSE payload.
type Event struct {
	Status  Status  `json:"status"`
	TraceID string  `json:"traceId"`
	Message Message `json:"message"`
}

func strPtr(s string) *string { return &s }
