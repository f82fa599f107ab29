package model

import "context"

// TurnRepository is the append-only conversation log, keyed by
// (user_id, thread_id). Turns are never mutated or deleted by the pipeline;
// ClearHistory exists for the thread CRUD collaborator only.
type TurnRepository interface {
	// Append adds one turn to the end of its thread's history.
	Append(ctx context.Context, turn ConversationTurn) error

	// Recent returns at most n turns for the thread in chronological order,
	// oldest first. A thread with no history yields an empty slice.
	Recent(ctx context.Context, userID, threadID string, n int) ([]ConversationTurn, error)

	// Count returns the number of turns recorded for the thread.
	Count(ctx context.Context, userID, threadID string) (int, error)

	// ClearHistory removes all turns for the thread.
	ClearHistory(ctx context.Context, userID, threadID string) error
}
