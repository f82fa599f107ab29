package model

import "context"

// Capability contracts for the external providers the pipeline suspends on.
// Each call carries a bounded timeout via ctx; failure handling is decided by
// the consuming stage, not the adapter (see the normalizer and safety gate).

// Transcriber converts recorded audio (16 kHz mono PCM) into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// LanguageDetector returns the ISO 639-1 code of the text's language.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Translator converts text between two language codes.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ToxicityScorer rates text toxicity in [0,1].
type ToxicityScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Embedder produces a vector embedding for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
