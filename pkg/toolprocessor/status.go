// Package toolprocessor exposes the application FSM as a four-tool
// interface for an outer driving LLM: start_fsm, confirm_state,
// provide_feedback, complete_fsm. It owns no transport or persistence
// of its own — AgentSession drives Step in a loop and handles SSE
// framing and checkpoint snapshots around it.
package toolprocessor

// Status classifies the outcome of one Step call for the session
// driver loop.
type Status string

const (
	StatusWIP               Status = "WIP"
	StatusCompleted         Status = "COMPLETED"
	StatusRefinementRequest Status = "REFINEMENT_REQUEST"
	StatusFailed            Status = "FAILED"
)
