package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maaaruch/tg-poll-bot/internal/poll"
)

// Entry is one running poll of a chat.
type Entry struct {
	ID        uuid.UUID
	ChatID    int64
	CreatorID int64
	StartedAt time.Time
	Engine    *poll.Engine
}

// Manager tracks running polls by ID. It does not own the engines' loops,
// it only lets the bot find and stop them.
type Manager struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

func NewManager() *Manager {
	return &Manager{
		entries: make(map[uuid.UUID]*Entry),
	}
}

func (m *Manager) Add(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
}

func (m *Manager) Get(id uuid.UUID) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Stop cancels the poll and forgets it. It reports false when the poll is
// unknown or already past expiry; such a poll still announces its result and
// is removed once its loop ends.
func (m *Manager) Stop(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || !e.Engine.Stop() {
		return false
	}
	delete(m.entries, id)
	return true
}

// InChat lists the chat's running polls, oldest first.
func (m *Manager) InChat(chatID int64) []*Entry {
	m.mu.RLock()
	var out []*Entry
	for _, e := range m.entries {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// StopAll stops every running poll, used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[uuid.UUID]*Entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.Engine.Stop()
	}
}
