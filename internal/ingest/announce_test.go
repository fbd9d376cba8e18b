package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/lifewrapped/lw-engine/internal/model"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []pipeline.Request
	err  error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return &pipeline.Result{}, f.err
}

func (f *fakeRunner) requests() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

func TestParseAnnouncement(t *testing.T) {
	t.Run("full_payload", func(t *testing.T) {
		payload := []byte(`{"session_id":"abc123","audio_key":"abc123/rec.wav","language":"en","tier":"local"}`)
		req, err := parseAnnouncement("lifewrapped/sessions/abc123/recorded", payload)
		if err != nil {
			t.Fatalf("parseAnnouncement: %v", err)
		}
		if req.SessionID != "abc123" {
			t.Errorf("SessionID = %q, want abc123", req.SessionID)
		}
		if req.AudioKey != "abc123/rec.wav" {
			t.Errorf("AudioKey = %q", req.AudioKey)
		}
		if req.Language != "en" {
			t.Errorf("Language = %q, want en", req.Language)
		}
		if req.ForceTier != model.TierLocal {
			t.Errorf("ForceTier = %q, want local", req.ForceTier)
		}
	})

	t.Run("session_id_from_topic", func(t *testing.T) {
		req, err := parseAnnouncement("lifewrapped/sessions/xyz789/recorded", []byte(`{"audio_key":"xyz789/rec.wav"}`))
		if err != nil {
			t.Fatalf("parseAnnouncement: %v", err)
		}
		if req.SessionID != "xyz789" {
			t.Errorf("SessionID = %q, want xyz789", req.SessionID)
		}
	})

	t.Run("empty_payload_uses_topic", func(t *testing.T) {
		req, err := parseAnnouncement("lifewrapped/sessions/s1/recorded", nil)
		if err != nil {
			t.Fatalf("parseAnnouncement: %v", err)
		}
		if req.SessionID != "s1" {
			t.Errorf("SessionID = %q, want s1", req.SessionID)
		}
	})

	t.Run("malformed_json", func(t *testing.T) {
		if _, err := parseAnnouncement("lifewrapped/sessions/s1/recorded", []byte(`{nope`)); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("no_session_anywhere", func(t *testing.T) {
		if _, err := parseAnnouncement("some/other/topic", []byte(`{}`)); err == nil {
			t.Error("expected missing-session error")
		}
	})
}

func TestSessionFromTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  string
	}{
		{"lifewrapped/sessions/abc123/recorded", "abc123"},
		{"lifewrapped/sessions/abc123/recorded/extra", "abc123"},
		{"lifewrapped/sessions/abc123", ""},
		{"other/sessions/abc123/recorded", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := sessionFromTopic(c.topic); got != c.want {
			t.Errorf("sessionFromTopic(%q) = %q, want %q", c.topic, got, c.want)
		}
	}
}
