package events

import (
	"testing"
	"time"
)

func recvTimeout(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.Publish(TypeProgress, "sess-1", map[string]any{"fraction": 0.5})

	e := recvTimeout(t, ch)
	if e.Type != TypeProgress {
		t.Errorf("Type = %q, want %q", e.Type, TypeProgress)
	}
	if e.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", e.SessionID)
	}
	if e.ID == "" {
		t.Error("expected non-empty event ID")
	}
}

func TestFilterBySession(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{SessionIDs: []string{"sess-2"}})
	defer cancel()

	bus.Publish(TypeProgress, "sess-1", nil)
	bus.Publish(TypeProgress, "sess-2", nil)

	e := recvTimeout(t, ch)
	if e.SessionID != "sess-2" {
		t.Errorf("SessionID = %q, want sess-2", e.SessionID)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event for session %q", extra.SessionID)
	default:
	}
}

func TestFilterByType(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{Types: []string{TypeCompleted, TypeFailed}})
	defer cancel()

	bus.Publish(TypeProgress, "sess-1", nil)
	bus.Publish(TypeCompleted, "sess-1", nil)

	e := recvTimeout(t, ch)
	if e.Type != TypeCompleted {
		t.Errorf("Type = %q, want %q", e.Type, TypeCompleted)
	}
}

func TestReplaySince(t *testing.T) {
	bus := NewBus(16)

	bus.Publish(TypeProgress, "sess-1", nil)
	bus.Publish(TypeProgress, "sess-2", nil)
	bus.Publish(TypeCompleted, "sess-2", nil)

	all := bus.ReplaySince("", Filter{})
	if len(all) != 3 {
		t.Fatalf("ReplaySince(\"\") returned %d events, want 3", len(all))
	}

	after := bus.ReplaySince(all[0].ID, Filter{})
	if len(after) != 2 {
		t.Errorf("ReplaySince(first) returned %d events, want 2", len(after))
	}

	filtered := bus.ReplaySince("", Filter{Types: []string{TypeCompleted}})
	if len(filtered) != 1 || filtered[0].Type != TypeCompleted {
		t.Errorf("filtered replay = %v, want one completed event", filtered)
	}
}

func TestRingBufferWraps(t *testing.T) {
	bus := NewBus(4)

	for i := 0; i < 10; i++ {
		bus.Publish(TypeProgress, "sess-1", map[string]int{"n": i})
	}

	all := bus.ReplaySince("", Filter{})
	if len(all) != 4 {
		t.Errorf("ring held %d events, want 4", len(all))
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(16)

	_, cancel := bus.Subscribe(Filter{})
	if got := bus.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}
	cancel()
	if got := bus.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount after cancel = %d, want 0", got)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(16)

	_, cancel := bus.Subscribe(Filter{})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(TypeProgress, "sess-1", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on slow subscriber")
	}
}
