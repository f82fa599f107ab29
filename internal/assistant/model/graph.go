package model

// PipelineState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Shared persistence goes through the conversations.Manager, never here.
type PipelineState struct {
	QueryID  string // correlation id for log events, one per invocation
	ThreadID string
	UserID   string

	Gated   *GatedQuery        // set after the safety gate, read by later handlers
	History []ConversationTurn // turns preceding this query, oldest first
	Context RetrievedContext   // set after retrieval; empty on blocked branches
}
