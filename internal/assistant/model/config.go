package model

// ================ Config ================

// NormalizerConfig drives language detection and the code-mixed override.
// The override exists because generic detectors tag Hinglish as the base
// language or as something unrelated entirely; it is a deliberate token-list
// heuristic kept out of the detector so it stays inspectable.
type NormalizerConfig struct {
	UnreliableCodes  []string `envconfig:"NORMALIZER_UNRELIABLE_CODES" default:"da,tl,en"`
	DiagnosticTokens []string `envconfig:"NORMALIZER_DIAGNOSTIC_TOKENS" default:"hai,kab,nahi,kya,tum,mera,aap"`
	OverrideCode     string   `envconfig:"NORMALIZER_OVERRIDE_CODE" default:"hi"`
}

// SafetyConfig tunes the gate. The threshold and keyword list are policy
// defaults inferred from operational use, not hard requirements, so both are
// environment-tunable.
type SafetyConfig struct {
	ToxicityThreshold float64  `envconfig:"SAFETY_TOXICITY_THRESHOLD" default:"0.5"`
	SensitiveKeywords []string `envconfig:"SAFETY_SENSITIVE_KEYWORDS" default:"aadhaar,pan card,passport,account number,ifsc,upi,password,ssn,social security,credit card,debit card,cvv"`
}

// RetrieverConfig bounds similarity search.
type RetrieverConfig struct {
	TopK      int    `envconfig:"RETRIEVER_TOP_K" default:"5"`
	IndexPath string `envconfig:"RETRIEVER_INDEX_PATH" default:"content_index.json"`
}

// ResponseModelConfig configures the generation model.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.3"`
}

// ConversationConfig controls the per-thread memory window.
type ConversationConfig struct {
	// TTL of a thread's Redis key; "0" keeps the audit trail forever.
	TTL          string `envconfig:"CONVERSATION_TTL" default:"0"`
	HistoryTurns int    `envconfig:"CONVERSATION_HISTORY_TURNS" default:"5"`
}

// CapabilityConfig points at the external capability providers.
type CapabilityConfig struct {
	OllamaURL      string `envconfig:"CAPABILITY_OLLAMA_URL" default:"http://localhost:11434"`
	EmbedModel     string `envconfig:"CAPABILITY_EMBED_MODEL" default:"nomic-embed-text"`
	TranslateURL   string `envconfig:"CAPABILITY_TRANSLATE_URL" default:"http://localhost:5000"`
	ToxicityURL    string `envconfig:"CAPABILITY_TOXICITY_URL" default:"http://localhost:8085"`
	TranscriberURL string `envconfig:"CAPABILITY_TRANSCRIBER_URL" default:"ws://localhost:2700"`
	TimeoutSeconds int    `envconfig:"CAPABILITY_TIMEOUT_SECONDS" default:"15"`
}
