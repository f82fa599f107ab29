// Package normalize resolves raw query input into canonical working-language
// text: voice transcription, language detection, a code-mixed override, and
// translation.
package normalize

import (
	"context"
	"strings"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	errx "github.com/campusconnect-poc/server/internal/core/error"
	logx "github.com/campusconnect-poc/server/pkg/logger"
)

type Normalizer struct {
	transcriber model.Transcriber
	detector    model.LanguageDetector
	translator  model.Translator

	unreliableCodes  map[string]bool
	diagnosticTokens []string
	overrideCode     string
}

func New(cfg model.NormalizerConfig, transcriber model.Transcriber, detector model.LanguageDetector, translator model.Translator) *Normalizer {
	unreliable := make(map[string]bool, len(cfg.UnreliableCodes))
	for _, c := range cfg.UnreliableCodes {
		unreliable[strings.TrimSpace(c)] = true
	}
	return &Normalizer{
		transcriber:      transcriber,
		detector:         detector,
		translator:       translator,
		unreliableCodes:  unreliable,
		diagnosticTokens: cfg.DiagnosticTokens,
		overrideCode:     cfg.OverrideCode,
	}
}

// Normalize validates the query, transcribes audio input, and produces
// canonical working-language text. Only two failures abort the pipeline:
// missing identifiers and failed transcription. Detection and translation
// are advisory and degrade instead.
func (n *Normalizer) Normalize(ctx context.Context, q model.Query) (model.NormalizedQuery, error) {
	var out model.NormalizedQuery

	if q.ThreadID == "" {
		return out, errx.MissingField("thread_id")
	}
	if q.UserID == "" {
		return out, errx.MissingField("user_id")
	}

	text := q.Text
	if text == "" {
		if len(q.Audio) == 0 {
			return out, errx.MissingField("text")
		}
		transcribed, err := n.transcriber.Transcribe(ctx, q.Audio)
		if err != nil {
			logx.Error().Err(err).Str("thread_id", q.ThreadID).Msg("voice transcription failed")
			return out, errx.Transcription(err)
		}
		text = transcribed
		logx.Debug().Str("thread_id", q.ThreadID).Msg("voice input transcribed")
	}

	lang := n.detectLanguage(ctx, q, text)
	lang = n.applyCodeMixedOverride(text, lang)

	canonical := text
	degraded := false
	if lang != model.WorkingLanguage {
		translated, err := n.translator.Translate(ctx, text, lang, model.WorkingLanguage)
		if err != nil {
			logx.Warn().Err(err).Str("lang", lang).Msg("translation failed, continuing with original text")
			degraded = true
		} else {
			canonical = translated
		}
	}

	return model.NormalizedQuery{
		ThreadID:            q.ThreadID,
		UserID:              q.UserID,
		OriginalText:        text,
		CanonicalText:       canonical,
		DetectedLanguage:    lang,
		TranslationDegraded: degraded,
	}, nil
}

func (n *Normalizer) detectLanguage(ctx context.Context, q model.Query, text string) string {
	if hint := strings.TrimSpace(q.LanguageHint); hint != "" {
		return hint
	}
	lang, err := n.detector.Detect(ctx, text)
	if err != nil || lang == "" {
		logx.Warn().Err(err).Msg("language detection failed, assuming working language")
		return model.WorkingLanguage
	}
	return lang
}

// applyCodeMixedOverride corrects detector misfires on code-mixed text.
// When the detector lands on a known-unreliable code and the text carries any
// diagnostic token of the code-mixed register, the region's code wins.
func (n *Normalizer) applyCodeMixedOverride(text, lang string) string {
	if !n.unreliableCodes[lang] {
		return lang
	}
	lower := strings.ToLower(text)
	for _, token := range n.diagnosticTokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if containsToken(lower, token) {
			logx.Debug().
				Str("detected", lang).
				Str("override", n.overrideCode).
				Str("token", token).
				Msg("code-mixed override applied")
			return n.overrideCode
		}
	}
	return lang
}

// containsToken matches whole words only, so "hai" does not fire on "chai".
func containsToken(text, token string) bool {
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	}) {
		if word == token {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '\'' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}
