package model

import "time"

// WorkingLanguage is the canonical language every downstream stage operates
// in. Detection, translation and retrieval all normalise toward it.
const WorkingLanguage = "en"

// Query is one user submission, typed or spoken. Immutable once created.
type Query struct {
	ThreadID     string `json:"thread_id"`
	UserID       string `json:"user_id"`
	Text         string `json:"text,omitempty"`
	Audio        []byte `json:"audio,omitempty"`
	LanguageHint string `json:"language_hint,omitempty"`
}

// NormalizedQuery carries the query after transcription, language detection
// and translation into the working language.
type NormalizedQuery struct {
	ThreadID            string
	UserID              string
	OriginalText        string
	CanonicalText       string
	DetectedLanguage    string
	TranslationDegraded bool
}

// SafetyReason identifies which check blocked a query.
type SafetyReason string

const (
	ReasonNone     SafetyReason = "none"
	ReasonToxicity SafetyReason = "toxicity"
	ReasonPII      SafetyReason = "pii"
)

// SafetyVerdict is the gate's decision for one normalized query.
// Invariant: Safe is true exactly when Reason is ReasonNone.
type SafetyVerdict struct {
	Safe          bool
	Reason        SafetyReason
	ToxicityScore float64
	PIIDetected   bool
}

// GatedQuery pairs a normalized query with its safety verdict.
type GatedQuery struct {
	NormalizedQuery
	Verdict SafetyVerdict
}

// Passage is one retrieved context chunk with its provenance.
type Passage struct {
	Text     string
	SourceID string
	Rank     int
}

// RetrievedContext is the ranked retrieval result, best match first.
// An empty slice means no relevant content was found; it is not an error.
type RetrievedContext []Passage

// SourceIDs returns the provenance ids in rank order.
func (rc RetrievedContext) SourceIDs() []string {
	ids := make([]string, 0, len(rc))
	for _, p := range rc {
		ids = append(ids, p.SourceID)
	}
	return ids
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a thread's append-only history.
type ConversationTurn struct {
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is the pipeline's terminal output for one query. Exactly one Answer
// is produced per well-formed query, blocked or not.
type Answer struct {
	Text              string        `json:"text"`
	Sources           []string      `json:"sources"`
	SafetyDisposition SafetyVerdict `json:"safety_disposition"`
}
