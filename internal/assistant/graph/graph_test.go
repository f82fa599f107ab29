package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect-poc/server/internal/assistant/graph/prompts"
	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/campusconnect-poc/server/internal/assistant/normalize"
	"github.com/campusconnect-poc/server/internal/assistant/retrieve"
	"github.com/campusconnect-poc/server/internal/assistant/safety"
	"github.com/campusconnect-poc/server/internal/assistant/testutil"
	errx "github.com/campusconnect-poc/server/internal/core/error"
)

type pipelineFixture struct {
	assistant Assistant
	repo      *testutil.FakeTurnRepository
	chatModel *testutil.FakeChatModel
	scorer    *testutil.FakeScorer
}

func newPipeline(t *testing.T, opts ...func(*pipelineFixture)) *pipelineFixture {
	t.Helper()

	fx := &pipelineFixture{
		repo:      testutil.NewFakeTurnRepository(),
		chatModel: &testutil.FakeChatModel{Reply: "Hostel fees are due on September 10."},
		scorer:    &testutil.FakeScorer{Value: 0.1},
	}
	for _, opt := range opts {
		opt(fx)
	}

	index := retrieve.NewIndex()
	index.Replace(retrieve.IndexSnapshot{Version: 1, Entries: []retrieve.IndexEntry{
		{SourceID: "handbook.pdf", Text: "Hostel fees are due on September 10, 2025.", Embedding: []float32{1, 0}},
		{SourceID: "notice.pdf", Text: "Late payment attracts a fine.", Embedding: []float32{0.8, 0.2}},
	}})

	normalizer := normalize.New(model.NormalizerConfig{
		UnreliableCodes:  []string{"da", "tl", "en"},
		DiagnosticTokens: []string{"hai", "kab", "nahi", "kya", "tum", "mera", "aap"},
		OverrideCode:     "hi",
	},
		&testutil.FakeTranscriber{Out: "when is the hostel fee due"},
		&testutil.FakeDetector{Code: "en"},
		&testutil.FakeTranslator{Out: "translated question"},
	)

	gate := safety.NewGate(model.SafetyConfig{
		ToxicityThreshold: 0.5,
		SensitiveKeywords: []string{"aadhaar", "password", "credit card"},
	}, fx.scorer)

	retriever := retrieve.New(model.RetrieverConfig{TopK: 5},
		&testutil.FakeEmbedder{Vector: []float32{1, 0}}, index)

	assistant, err := BuildPipeline(context.Background(), Config{
		Normalizer:   normalizer,
		Gate:         gate,
		Retriever:    retriever,
		ChatModel:    fx.chatModel,
		ModelName:    "fake-model",
		Turns:        fx.repo,
		Conversation: model.ConversationConfig{HistoryTurns: 5},
	})
	require.NoError(t, err)

	fx.assistant = assistant
	return fx
}

func query(text string) model.Query {
	return model.Query{ThreadID: "t1", UserID: "u1", Text: text}
}

func TestProcessQuery_GroundedAnswer(t *testing.T) {
	fx := newPipeline(t)

	answer, err := fx.assistant.ProcessQuery(context.Background(), query("when is the hostel fee due"))

	require.NoError(t, err)
	assert.Equal(t, "Hostel fees are due on September 10.", answer.Text)
	assert.Equal(t, []string{"handbook.pdf", "notice.pdf"}, answer.Sources)
	assert.True(t, answer.SafetyDisposition.Safe)

	turns := fx.repo.All("u1", "t1")
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "when is the hostel fee due", turns[0].Text)
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
	assert.Equal(t, answer.Text, turns[1].Text)
}

func TestProcessQuery_PromptCarriesContextQuestionAndLanguage(t *testing.T) {
	fx := newPipeline(t)

	_, err := fx.assistant.ProcessQuery(context.Background(), query("when is the hostel fee due"))
	require.NoError(t, err)

	promptCalls := fx.chatModel.Prompts()
	require.Len(t, promptCalls, 1)
	require.Len(t, promptCalls[0], 1)
	text := promptCalls[0][0].Content
	assert.Contains(t, text, "Hostel fees are due on September 10, 2025.")
	assert.Contains(t, text, "Question: when is the hostel fee due")
	assert.Contains(t, text, "Answer in en:")
}

func TestProcessQuery_HistoryFlowsIntoFollowUpPrompt(t *testing.T) {
	fx := newPipeline(t)
	ctx := context.Background()

	_, err := fx.assistant.ProcessQuery(ctx, query("when is the hostel fee due"))
	require.NoError(t, err)
	_, err = fx.assistant.ProcessQuery(ctx, query("can I pay in installments"))
	require.NoError(t, err)

	promptCalls := fx.chatModel.Prompts()
	require.Len(t, promptCalls, 2)
	followUp := promptCalls[1][0].Content
	assert.Contains(t, followUp, "User: when is the hostel fee due")
	assert.Contains(t, followUp, "Assistant: Hostel fees are due on September 10.")
	assert.NotContains(t, promptCalls[0][0].Content, "User:", "first prompt has no history")
}

func TestProcessQuery_PIIBlocked(t *testing.T) {
	fx := newPipeline(t)

	answer, err := fx.assistant.ProcessQuery(context.Background(), query("my aadhaar number is attached"))

	require.NoError(t, err)
	assert.Equal(t, prompts.PIIRefusal, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.False(t, answer.SafetyDisposition.Safe)
	assert.Equal(t, model.ReasonPII, answer.SafetyDisposition.Reason)

	assert.Zero(t, fx.chatModel.Calls(), "blocked queries never reach the model")

	turns := fx.repo.All("u1", "t1")
	require.Len(t, turns, 2, "blocked interactions are still recorded")
	assert.Equal(t, prompts.PIIRefusal, turns[1].Text)
}

func TestProcessQuery_ToxicBlocked(t *testing.T) {
	fx := newPipeline(t, func(fx *pipelineFixture) {
		fx.scorer.Value = 0.95
	})

	answer, err := fx.assistant.ProcessQuery(context.Background(), query("some abusive rant"))

	require.NoError(t, err)
	assert.Equal(t, prompts.ToxicityRefusal, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, model.ReasonToxicity, answer.SafetyDisposition.Reason)
	assert.Zero(t, fx.chatModel.Calls())
	assert.Len(t, fx.repo.All("u1", "t1"), 2)
}

func TestProcessQuery_ToxicityReportedOverPII(t *testing.T) {
	fx := newPipeline(t, func(fx *pipelineFixture) {
		fx.scorer.Value = 0.95
	})

	answer, err := fx.assistant.ProcessQuery(context.Background(), query("abusive rant about my credit card"))

	require.NoError(t, err)
	assert.Equal(t, model.ReasonToxicity, answer.SafetyDisposition.Reason)
	assert.True(t, answer.SafetyDisposition.PIIDetected)
}

func TestProcessQuery_GenerationFailureYieldsApology(t *testing.T) {
	fx := newPipeline(t, func(fx *pipelineFixture) {
		fx.chatModel.Err = fmt.Errorf("model timeout")
	})

	answer, err := fx.assistant.ProcessQuery(context.Background(), query("when is the hostel fee due"))

	require.NoError(t, err)
	assert.Equal(t, prompts.GenerationApology, answer.Text)

	turns := fx.repo.All("u1", "t1")
	require.Len(t, turns, 2, "degraded answers still complete the audit trail")
	assert.Equal(t, prompts.GenerationApology, turns[1].Text)
}

func TestProcessQuery_MissingIdentifiersProduceNoTurns(t *testing.T) {
	fx := newPipeline(t)

	_, err := fx.assistant.ProcessQuery(context.Background(), model.Query{UserID: "u1", Text: "hello"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrMissingField))
	assert.Empty(t, fx.repo.All("u1", ""))
	assert.Empty(t, fx.repo.All("u1", "t1"))
}

func TestProcessQuery_TranscriptionFailureAborts(t *testing.T) {
	fx := newPipeline(t)

	normalizer := normalize.New(model.NormalizerConfig{},
		&testutil.FakeTranscriber{Err: fmt.Errorf("no speech detected")},
		&testutil.FakeDetector{Code: "en"},
		&testutil.FakeTranslator{},
	)
	assistant, err := BuildPipeline(context.Background(), Config{
		Normalizer:   normalizer,
		Gate:         safety.NewGate(model.SafetyConfig{ToxicityThreshold: 0.5}, fx.scorer),
		Retriever:    retrieve.New(model.RetrieverConfig{TopK: 5}, &testutil.FakeEmbedder{Vector: []float32{1, 0}}, retrieve.NewIndex()),
		ChatModel:    fx.chatModel,
		Turns:        fx.repo,
		Conversation: model.ConversationConfig{HistoryTurns: 5},
	})
	require.NoError(t, err)

	_, err = assistant.ProcessQuery(context.Background(), model.Query{ThreadID: "t1", UserID: "u1", Audio: []byte{1, 2, 3}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTranscription))
	assert.Empty(t, fx.repo.All("u1", "t1"))
}

func TestProcessQuery_EmptyRetrievalStillAnswers(t *testing.T) {
	repo := testutil.NewFakeTurnRepository()
	chatModel := &testutil.FakeChatModel{Reply: "Software engineering is the disciplined construction of software."}

	assistant, err := BuildPipeline(context.Background(), Config{
		Normalizer: normalize.New(model.NormalizerConfig{},
			&testutil.FakeTranscriber{}, &testutil.FakeDetector{Code: "en"}, &testutil.FakeTranslator{}),
		Gate:         safety.NewGate(model.SafetyConfig{ToxicityThreshold: 0.5}, &testutil.FakeScorer{Value: 0.1}),
		Retriever:    retrieve.New(model.RetrieverConfig{TopK: 5}, &testutil.FakeEmbedder{Vector: []float32{1, 0}}, retrieve.NewIndex()),
		ChatModel:    chatModel,
		Turns:        repo,
		Conversation: model.ConversationConfig{HistoryTurns: 5},
	})
	require.NoError(t, err)

	answer, err := assistant.ProcessQuery(context.Background(), query("software engineering"))

	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.Empty(t, answer.Sources)
	require.Len(t, chatModel.Prompts(), 1)
	assert.Contains(t, chatModel.Prompts()[0][0].Content, "Question: software engineering")
}

func TestRecentHistory_ChronologicalAcrossQueries(t *testing.T) {
	fx := newPipeline(t)
	ctx := context.Background()

	for _, q := range []string{"first question", "second question", "third question"} {
		_, err := fx.assistant.ProcessQuery(ctx, query(q))
		require.NoError(t, err)
	}

	turns, err := fx.assistant.RecentHistory(ctx, "u1", "t1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 5)
	assert.Equal(t, model.RoleAssistant, turns[0].Role)
	assert.Equal(t, "second question", turns[1].Text)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Equal(t, "third question", turns[3].Text)

	for i := 1; i < len(turns); i++ {
		assert.False(t, turns[i].CreatedAt.Before(turns[i-1].CreatedAt), "turns must be chronological")
	}
}

func TestProcessQuery_RefusalPromptLeaksNothing(t *testing.T) {
	fx := newPipeline(t)
	ctx := context.Background()

	// Seed history with a grounded exchange first.
	_, err := fx.assistant.ProcessQuery(ctx, query("when is the hostel fee due"))
	require.NoError(t, err)

	answer, err := fx.assistant.ProcessQuery(ctx, query("store my password 9876543210"))
	require.NoError(t, err)

	require.False(t, answer.SafetyDisposition.Safe)
	assert.Empty(t, answer.Sources)
	assert.False(t, strings.Contains(answer.Text, "Hostel fees"), "refusal must not echo history or context")
	assert.Equal(t, 1, fx.chatModel.Calls(), "only the first, safe query reached the model")
}
