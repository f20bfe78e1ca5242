package agentsession

import "github.com/appdotbuild/agent/pkg/llm"

// ConversationMessage is one message of the client-supplied
// conversation history, per spec §6.1's AgentRequest.allMessages.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentRequest is the decoded body of a POST /message call.
type AgentRequest struct {
	AllMessages   []ConversationMessage `json:"allMessages"`
	ApplicationID string                `json:"applicationId"`
	TraceID       string                `json:"traceId"`
	AllFiles      map[string]string     `json:"allFiles"`
	AgentState    *AgentState           `json:"agentState,omitempty"`
	Settings      map[string]any        `json:"settings,omitempty"`
}

// convertConversation turns the wire conversation into the message list
// the tool processor's first Step call extends.
func convertConversation(in []ConversationMessage) []llm.Message {
	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		out = append(out, llm.NewMessage(m.Role, m.Content))
	}
	return out
}

// lastAssistantText returns the most recent assistant message's
// content, used as a RefinementRequest event's human-readable body.
func lastAssistantText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return messages[i].Content
		}
	}
	return ""
}
