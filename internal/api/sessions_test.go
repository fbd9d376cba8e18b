package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/cache"
	"github.com/lifewrapped/lw-engine/internal/model"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
	"github.com/lifewrapped/lw-engine/internal/storage"
)

type stubRunner struct {
	req pipeline.Request
	res *pipeline.Result
	err error
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.req = req
	return s.res, s.err
}

func testEntry(tier model.EngineTier) *cache.Entry {
	return &cache.Entry{
		Transcript: &model.Transcript{ID: "tr-1", Text: "hello world", Language: "en"},
		Summary: &model.SummaryResult{
			Text:        "a summary",
			Tier:        tier,
			GeneratedAt: time.Now().UTC(),
		},
		Tier:        tier,
		GeneratedAt: time.Now().UTC(),
	}
}

func sessionsRouter(h *SessionsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func TestSummarizeEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &stubRunner{res: &pipeline.Result{Entry: testEntry(model.TierBasic)}}
		h := NewSessionsHandler(runner, cache.New(nil, zerolog.Nop()), nil, nil, zerolog.Nop())

		body := strings.NewReader(`{"tier":"basic","language":"en"}`)
		req := httptest.NewRequest("POST", "/api/v1/sessions/abc123/summarize", body)
		w := httptest.NewRecorder()
		sessionsRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if runner.req.SessionID != "abc123" {
			t.Errorf("runner saw session %q", runner.req.SessionID)
		}
		if runner.req.ForceTier != model.TierBasic {
			t.Errorf("runner saw tier %q", runner.req.ForceTier)
		}

		var resp SessionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Tier != model.TierBasic || resp.Summary.Text != "a summary" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("unknown_tier_rejected", func(t *testing.T) {
		runner := &stubRunner{}
		h := NewSessionsHandler(runner, cache.New(nil, zerolog.Nop()), nil, nil, zerolog.Nop())

		body := strings.NewReader(`{"tier":"quantum"}`)
		req := httptest.NewRequest("POST", "/api/v1/sessions/s1/summarize", body)
		w := httptest.NewRecorder()
		sessionsRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("empty_body_allowed", func(t *testing.T) {
		runner := &stubRunner{res: &pipeline.Result{Entry: testEntry(model.TierLocal)}}
		h := NewSessionsHandler(runner, cache.New(nil, zerolog.Nop()), nil, nil, zerolog.Nop())

		req := httptest.NewRequest("POST", "/api/v1/sessions/s1/summarize", nil)
		w := httptest.NewRecorder()
		sessionsRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", w.Code, w.Body.String())
		}
	})

}

func TestValidSessionID(t *testing.T) {
	valid := []string{"abc123", "2026-08-30-morning", "a_b.c"}
	invalid := []string{"", ".", "..", "a/b", `a\b`, "../etc"}
	for _, id := range valid {
		if !validSessionID(id) {
			t.Errorf("validSessionID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if validSessionID(id) {
			t.Errorf("validSessionID(%q) = true, want false", id)
		}
	}
}

func TestSummarizeErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"audio_not_found", model.NewAudioFileNotFound("/x.wav"), http.StatusNotFound},
		{"bad_format", model.NewInvalidAudioFormat("not audio"), http.StatusBadRequest},
		{"tier_unavailable", model.NewNotAvailable(model.StateSelectingTier, "down"), http.StatusServiceUnavailable},
		{"recognition_failed", model.NewRecognitionFailed("backend", errors.New("500")), http.StatusBadGateway},
		{"summarization_failed", model.NewSummarizationFailed(model.TierExternal, "provider", errors.New("x")), http.StatusBadGateway},
		{"cancelled", model.NewCancelled(model.StateSummarizing), 499},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			runner := &stubRunner{err: c.err}
			h := NewSessionsHandler(runner, cache.New(nil, zerolog.Nop()), nil, nil, zerolog.Nop())

			req := httptest.NewRequest("POST", "/api/v1/sessions/s1/summarize", nil)
			w := httptest.NewRecorder()
			sessionsRouter(h).ServeHTTP(w, req)

			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	c := cache.New(nil, zerolog.Nop())
	entry := testEntry(model.TierLocal)
	if err := c.Put(context.Background(), "s1", entry.Transcript, entry.Summary); err != nil {
		t.Fatal(err)
	}
	h := NewSessionsHandler(&stubRunner{}, c, nil, nil, zerolog.Nop())

	t.Run("cached", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/sessions/s1", nil)
		w := httptest.NewRecorder()
		sessionsRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp SessionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Cached || resp.Tier != model.TierLocal {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/sessions/nope", nil)
		w := httptest.NewRecorder()
		sessionsRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestListSessionsWithoutDB(t *testing.T) {
	h := NewSessionsHandler(&stubRunner{}, cache.New(nil, zerolog.Nop()), nil, nil, zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	sessionsRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	c := cache.New(nil, zerolog.Nop())
	entry := testEntry(model.TierBasic)
	if err := c.Put(context.Background(), "s1", entry.Transcript, entry.Summary); err != nil {
		t.Fatal(err)
	}
	audio := storage.NewLocalStore(t.TempDir())
	if err := audio.Save(context.Background(), "s1/recording.wav", []byte("RIFF"), "audio/wav"); err != nil {
		t.Fatal(err)
	}
	h := NewSessionsHandler(&stubRunner{}, c, nil, audio, zerolog.Nop())

	req := httptest.NewRequest("DELETE", "/api/v1/sessions/s1", nil)
	w := httptest.NewRecorder()
	sessionsRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if c.Len() != 0 {
		t.Error("cache entry survived delete")
	}
	if audio.Exists(context.Background(), "s1/recording.wav") {
		t.Error("recording survived delete")
	}
}
