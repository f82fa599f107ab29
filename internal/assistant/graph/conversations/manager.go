package conversations

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/campusconnect-poc/server/internal/assistant/model"
)

// Manager fronts the turn repository for the pipeline. It serializes
// read-then-append per (user, thread) so two concurrent turns in the same
// thread cannot interleave out of chronological order; distinct threads
// proceed in parallel.
type Manager struct {
	repo         model.TurnRepository
	historyTurns int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(repo model.TurnRepository, cfg model.ConversationConfig) *Manager {
	historyTurns := cfg.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &Manager{
		repo:         repo,
		historyTurns: historyTurns,
		locks:        make(map[string]*sync.Mutex),
	}
}

func (m *Manager) threadLock(userID, threadID string) *sync.Mutex {
	key := userID + "\x00" + threadID
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// BeginTurn records the user turn and returns the history that preceded it,
// oldest first, both under one per-thread critical section.
func (m *Manager) BeginTurn(ctx context.Context, userID, threadID, text string) ([]model.ConversationTurn, error) {
	lock := m.threadLock(userID, threadID)
	lock.Lock()
	defer lock.Unlock()

	history, err := m.repo.Recent(ctx, userID, threadID, m.historyTurns)
	if err != nil {
		return nil, err
	}

	err = m.repo.Append(ctx, model.ConversationTurn{
		ThreadID:  threadID,
		UserID:    userID,
		Role:      model.RoleUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// CompleteTurn records the assistant turn. Must succeed before the pipeline
// reports its answer, so every processed query leaves exactly one user and
// one assistant turn behind — blocked queries included.
func (m *Manager) CompleteTurn(ctx context.Context, userID, threadID, text string) error {
	lock := m.threadLock(userID, threadID)
	lock.Lock()
	defer lock.Unlock()

	return m.repo.Append(ctx, model.ConversationTurn{
		ThreadID:  threadID,
		UserID:    userID,
		Role:      model.RoleAssistant,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
}

// Recent exposes the read side for collaborators restoring a thread's UI.
func (m *Manager) Recent(ctx context.Context, userID, threadID string, n int) ([]model.ConversationTurn, error) {
	return m.repo.Recent(ctx, userID, threadID, n)
}

// FormatHistory renders turns as role-labeled lines for the grounded prompt.
func FormatHistory(turns []model.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case model.RoleUser:
			b.WriteString("User: ")
		case model.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
