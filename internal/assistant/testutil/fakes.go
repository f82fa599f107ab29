// Package testutil provides in-memory fakes for the pipeline's capabilities
// and the turn repository.
package testutil

import (
	"context"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/campusconnect-poc/server/internal/assistant/model"
)

// FakeTurnRepository keeps turns in memory, keyed like the Redis repository.
type FakeTurnRepository struct {
	mu      sync.Mutex
	threads map[string][]model.ConversationTurn

	FailAppend bool
}

func NewFakeTurnRepository() *FakeTurnRepository {
	return &FakeTurnRepository{threads: make(map[string][]model.ConversationTurn)}
}

func key(userID, threadID string) string {
	return userID + "|" + threadID
}

func (f *FakeTurnRepository) Append(ctx context.Context, turn model.ConversationTurn) error {
	if f.FailAppend {
		return fmt.Errorf("append failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(turn.UserID, turn.ThreadID)
	f.threads[k] = append(f.threads[k], turn)
	return nil
}

func (f *FakeTurnRepository) Recent(ctx context.Context, userID, threadID string, n int) ([]model.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.threads[key(userID, threadID)]
	if n < len(turns) {
		turns = turns[len(turns)-n:]
	}
	out := make([]model.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (f *FakeTurnRepository) Count(ctx context.Context, userID, threadID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threads[key(userID, threadID)]), nil
}

func (f *FakeTurnRepository) ClearHistory(ctx context.Context, userID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.threads, key(userID, threadID))
	return nil
}

// All returns every turn stored for the thread, oldest first.
func (f *FakeTurnRepository) All(userID, threadID string) []model.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.threads[key(userID, threadID)]
	out := make([]model.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

var _ model.TurnRepository = (*FakeTurnRepository)(nil)

// FakeScorer returns a fixed toxicity score, or an error when Err is set.
type FakeScorer struct {
	Value float64
	Err   error
}

func (f *FakeScorer) Score(ctx context.Context, text string) (float64, error) {
	return f.Value, f.Err
}

// FakeDetector returns a fixed language code, or an error when Err is set.
type FakeDetector struct {
	Code string
	Err  error
}

func (f *FakeDetector) Detect(ctx context.Context, text string) (string, error) {
	return f.Code, f.Err
}

// FakeTranslator records its input and returns Out, or an error when Err is set.
type FakeTranslator struct {
	Out    string
	Err    error
	Called bool
	Source string
	Target string
}

func (f *FakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.Called = true
	f.Source = source
	f.Target = target
	if f.Err != nil {
		return "", f.Err
	}
	return f.Out, nil
}

// FakeTranscriber returns a fixed transcript, or an error when Err is set.
type FakeTranscriber struct {
	Out string
	Err error
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Out, nil
}

// FakeEmbedder returns a fixed embedding, or an error when Err is set.
type FakeEmbedder struct {
	Vector []float32
	Err    error
}

func (f *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vector, nil
}

// FakeChatModel returns a fixed reply and records the prompts it saw.
type FakeChatModel struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	prompts [][]*schema.Message
}

func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, input)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return schema.AssistantMessage(f.Reply, nil), nil
}

// Prompts returns every message slice passed to Generate.
func (f *FakeChatModel) Prompts() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]*schema.Message, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// Calls returns how many times Generate ran.
func (f *FakeChatModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

var (
	_ model.ToxicityScorer   = (*FakeScorer)(nil)
	_ model.LanguageDetector = (*FakeDetector)(nil)
	_ model.Translator       = (*FakeTranslator)(nil)
	_ model.Transcriber      = (*FakeTranscriber)(nil)
	_ model.Embedder         = (*FakeEmbedder)(nil)
)
