package normalize

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/campusconnect-poc/server/internal/assistant/testutil"
	errx "github.com/campusconnect-poc/server/internal/core/error"
)

func defaultConfig() model.NormalizerConfig {
	return model.NormalizerConfig{
		UnreliableCodes:  []string{"da", "tl", "en"},
		DiagnosticTokens: []string{"hai", "kab", "nahi", "kya", "tum", "mera", "aap"},
		OverrideCode:     "hi",
	}
}

func newNormalizer(transcriber model.Transcriber, detector model.LanguageDetector, translator model.Translator) *Normalizer {
	return New(defaultConfig(), transcriber, detector, translator)
}

func TestNormalize_MissingThreadID(t *testing.T) {
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, &testutil.FakeTranslator{})

	_, err := n.Normalize(context.Background(), model.Query{UserID: "u1", Text: "hello"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrMissingField))
}

func TestNormalize_MissingUserID(t *testing.T) {
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, &testutil.FakeTranslator{})

	_, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", Text: "hello"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrMissingField))
}

func TestNormalize_MissingTextAndAudio(t *testing.T) {
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, &testutil.FakeTranslator{})

	_, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrMissingField))
}

func TestNormalize_EnglishTextPassesThrough(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "should not be used"}
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "When is the exam?"})

	require.NoError(t, err)
	assert.Equal(t, "When is the exam?", nq.CanonicalText)
	assert.Equal(t, "en", nq.DetectedLanguage)
	assert.False(t, nq.TranslationDegraded)
	assert.False(t, translator.Called, "working-language text must not be translated")
}

func TestNormalize_CodeMixedOverrideTriggersTranslation(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "When is the hostel fee due?"}
	// Detector misfires on Hinglish, tagging it as the base language.
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "Hostel fee kab dena hai?"})

	require.NoError(t, err)
	assert.Equal(t, "hi", nq.DetectedLanguage)
	assert.Equal(t, "When is the hostel fee due?", nq.CanonicalText)
	assert.Equal(t, "Hostel fee kab dena hai?", nq.OriginalText)
	require.True(t, translator.Called)
	assert.Equal(t, "hi", translator.Source)
	assert.Equal(t, "en", translator.Target)
}

func TestNormalize_OverrideNeedsUnreliableCode(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "translated"}
	// A confident detection outside the unreliable set is trusted even when a
	// diagnostic token happens to appear.
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "fr"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "kab est la fête?"})

	require.NoError(t, err)
	assert.Equal(t, "fr", nq.DetectedLanguage)
}

func TestNormalize_OverrideNeedsDiagnosticToken(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "translated"}
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "tl"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "magandang umaga po"})

	require.NoError(t, err)
	assert.Equal(t, "tl", nq.DetectedLanguage)
}

func TestNormalize_TokenMatchesWholeWordsOnly(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "translated"}
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, translator)

	// "chai" contains "hai" as a substring but is not a diagnostic token.
	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "where can I buy chai"})

	require.NoError(t, err)
	assert.Equal(t, "en", nq.DetectedLanguage)
}

func TestNormalize_DetectorFailureFallsBackToWorkingLanguage(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "should not be used"}
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Err: fmt.Errorf("detector down")}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "library timings?"})

	require.NoError(t, err)
	assert.Equal(t, model.WorkingLanguage, nq.DetectedLanguage)
	assert.Equal(t, "library timings?", nq.CanonicalText)
	assert.False(t, translator.Called)
}

func TestNormalize_TranslationFailureDegrades(t *testing.T) {
	translator := &testutil.FakeTranslator{Err: fmt.Errorf("translator down")}
	n := newNormalizer(&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "hi"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Text: "छात्रावास शुल्क कब देना है?"})

	require.NoError(t, err)
	assert.True(t, nq.TranslationDegraded)
	assert.Equal(t, "छात्रावास शुल्क कब देना है?", nq.CanonicalText)
	assert.Equal(t, "hi", nq.DetectedLanguage)
}

func TestNormalize_AudioTranscribedBeforeTextProcessing(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "translated"}
	n := newNormalizer(&testutil.FakeTranscriber{Out: "when is the exam"}, &testutil.FakeDetector{Code: "en"}, translator)

	nq, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Audio: []byte{1, 2, 3}})

	require.NoError(t, err)
	assert.Equal(t, "when is the exam", nq.OriginalText)
	assert.Equal(t, "when is the exam", nq.CanonicalText)
}

func TestNormalize_TranscriptionFailureAborts(t *testing.T) {
	n := newNormalizer(&testutil.FakeTranscriber{Err: fmt.Errorf("no speech")}, &testutil.FakeDetector{Code: "en"}, &testutil.FakeTranslator{})

	_, err := n.Normalize(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Audio: []byte{1, 2, 3}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTranscription))
}

func TestNormalize_LanguageHintSkipsDetection(t *testing.T) {
	translator := &testutil.FakeTranslator{Out: "translated text"}
	detector := &testutil.FakeDetector{Err: fmt.Errorf("should not be called")}
	n := newNormalizer(&testutil.FakeTranscriber{}, detector, translator)

	nq, err := n.Normalize(context.Background(), model.Query{
		ThreadID:     "t1",
		UserID:       "u1",
		Text:         "छात्रावास शुल्क?",
		LanguageHint: "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", nq.DetectedLanguage)
	assert.Equal(t, "translated text", nq.CanonicalText)
}
