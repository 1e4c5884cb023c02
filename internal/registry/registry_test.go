package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/tg-poll-bot/internal/poll"
)

type nopRenderer struct{}

func (nopRenderer) Render(context.Context, poll.View) (poll.MessageHandle, error) {
	return poll.MessageHandle{ChatID: 1, MessageID: 1}, nil
}

type nopCounter struct{}

func (nopCounter) ReactionCount(context.Context, poll.MessageHandle) ([]int, error) {
	return []int{0, 0}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

func newEntry(t *testing.T, chatID int64, startedAt time.Time) *Entry {
	t.Helper()
	s, err := poll.New(5, "t", nil)
	require.NoError(t, err)
	return &Entry{
		ID:        s.ID,
		ChatID:    chatID,
		CreatorID: 7,
		StartedAt: startedAt,
		Engine:    poll.NewEngine(s, nopRenderer{}, nopCounter{}, nopNotifier{}),
	}
}

func TestManager_AddGetRemove(t *testing.T) {
	m := NewManager()
	e := newEntry(t, 100, time.Unix(10, 0))

	m.Add(e)
	got, ok := m.Get(e.ID)
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, m.Len())

	m.Remove(e.ID)
	_, ok = m.Get(e.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestManager_InChatOrdersByStart(t *testing.T) {
	m := NewManager()
	late := newEntry(t, 100, time.Unix(30, 0))
	early := newEntry(t, 100, time.Unix(10, 0))
	other := newEntry(t, 200, time.Unix(20, 0))

	m.Add(late)
	m.Add(other)
	m.Add(early)

	got := m.InChat(100)
	require.Len(t, got, 2)
	assert.Same(t, early, got[0])
	assert.Same(t, late, got[1])

	assert.Empty(t, m.InChat(300))
}

func TestManager_StopStopsEngine(t *testing.T) {
	m := NewManager()
	e := newEntry(t, 100, time.Now())
	m.Add(e)

	go e.Engine.Run(context.Background())

	assert.True(t, m.Stop(e.ID))
	assert.False(t, m.Stop(e.ID), "second stop must report not running")

	select {
	case <-e.Engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestManager_StopAll(t *testing.T) {
	m := NewManager()
	a := newEntry(t, 1, time.Now())
	b := newEntry(t, 2, time.Now())
	m.Add(a)
	m.Add(b)

	go a.Engine.Run(context.Background())
	go b.Engine.Run(context.Background())

	m.StopAll()
	assert.Equal(t, 0, m.Len())

	for _, e := range []*Entry{a, b} {
		select {
		case <-e.Engine.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("engine did not stop")
		}
	}
}

func TestManager_StopAfterExpiryKeepsEntry(t *testing.T) {
	m := NewManager()
	s, err := poll.New(1, "t", nil)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	e := &Entry{
		ID:     s.ID,
		ChatID: 100,
		Engine: poll.NewEngine(s, nopRenderer{}, nopCounter{}, nopNotifier{}, poll.WithClock(clock)),
	}
	m.Add(e)
	require.NoError(t, e.Engine.Start(context.Background()))

	go e.Engine.Run(context.Background())
	clock.BlockUntil(1)
	clock.Advance(poll.TickInterval)

	select {
	case <-e.Engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not expire")
	}

	assert.False(t, m.Stop(e.ID))
	_, ok := m.Get(e.ID)
	assert.True(t, ok, "expired poll is removed by its own loop, not by Stop")
}
