package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fableforge/fableforge/internal/game"
)

// Memory is an in-process store for development without redis. State goes
// through JSON so callers get the same copy semantics as the redis store.
type Memory struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, sessionID string) (*game.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	var state game.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *Memory) Save(_ context.Context, sessionID string, state *game.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = raw
	return nil
}
