package history

import (
	"context"
	"sync"

	"github.com/kailas-cloud/docchat/internal/domain/session"
)

var _ Store = (*Memory)(nil)

// Memory keeps transcripts for the lifetime of the process.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]session.Turn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]session.Turn)}
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		m.sessions[id] = []session.Turn{}
	}
	return nil
}

// Append implements Store. Unknown sessions are created on the fly.
func (m *Memory) Append(_ context.Context, id string, turns ...session.Turn) error {
	if err := validateTurns(turns); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append(m.sessions[id], turns...)
	return nil
}

// History returns a copy of the transcript.
func (m *Memory) History(_ context.Context, id string) ([]session.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.sessions[id]
	out := make([]session.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok, nil
}
