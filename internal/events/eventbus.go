package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lifewrapped/lw-engine/internal/metrics"
)

// Event types published by the pipeline.
const (
	TypeProgress  = "progress"
	TypeCompleted = "completed"
	TypeFailed    = "failed"
	TypeCancelled = "cancelled"
)

// Event is one SSE-deliverable pipeline event.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Filter restricts which events a subscriber receives. Empty fields match
// everything.
type Filter struct {
	SessionIDs []string
	Types      []string
}

// Bus provides pub-sub event distribution for SSE subscribers. It keeps a
// ring buffer for replay on reconnect.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// NewBus creates an event bus with the given ring buffer size.
func NewBus(ringSize int) *Bus {
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ReplaySince returns buffered events published after the given event ID.
func (b *Bus) ReplaySince(lastEventID string, filter Filter) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var out []Event
	found := lastEventID == ""

	for i := 0; i < b.ringSize; i++ {
		idx := (b.ringHead + i) % b.ringSize
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

// Publish sends an event to all matching subscribers and adds it to the ring
// buffer. Slow subscribers are dropped-to rather than blocked-on so progress
// delivery never stalls the pipeline.
func (b *Bus) Publish(eventType, sessionID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	seq := b.seq.Add(1)
	event := Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = event
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	metrics.SSEEventsPublishedTotal.Inc()

	b.mu.RLock()
	for _, sub := range b.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
				// Drop if subscriber is slow
			}
		}
	}
	b.mu.RUnlock()
}

func matchesFilter(e Event, f Filter) bool {
	if len(f.Types) > 0 {
		match := false
		for _, t := range f.Types {
			if t == e.Type {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if len(f.SessionIDs) > 0 {
		match := false
		for _, s := range f.SessionIDs {
			if s == e.SessionID {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
