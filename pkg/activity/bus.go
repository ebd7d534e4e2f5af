package activity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistory is how many events a Bus keeps for Recent and Since.
const DefaultHistory = 256

// Bus is an in-process fan-out of change events.
// Publish never blocks: subscribers that fall behind miss events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	history []Event
	size    int
}

// NewBus creates a Bus that remembers the last size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultHistory
	}
	return &Bus{
		subs: make(map[chan Event]struct{}),
		size: size,
	}
}

// Publish records an event and fans it out to all subscribers.
func (b *Bus) Publish(_ context.Context, eventType string, taskID int64, content map[string]any) Event {
	if content == nil {
		content = map[string]any{}
	}
	e := Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}

	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.size {
		b.history = b.history[len(b.history)-b.size:]
	}
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking Publish
		}
	}
	b.mu.Unlock()

	return e
}

// Subscribe returns a buffered channel that receives all new events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Recent returns up to limit of the newest events, oldest first.
func (b *Bus) Recent(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if limit > 0 && len(b.history) > limit {
		start = len(b.history) - limit
	}
	return append([]Event(nil), b.history[start:]...)
}

// Since returns up to limit events published after the event with id
// afterID. If afterID is no longer remembered, it returns the retained
// history from the start.
func (b *Bus) Since(afterID string, limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	for i, e := range b.history {
		if e.ID == afterID {
			start = i + 1
			break
		}
	}
	out := b.history[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]Event(nil), out...)
}
