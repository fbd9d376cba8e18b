package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates_when_absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("no X-Request-ID generated")
		}
	})

	t.Run("preserves_client_id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Request-ID", "client-123")
		w := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); got != "client-123" {
			t.Errorf("X-Request-ID = %q, want client-123", got)
		}
	})
}

func TestBearerAuth(t *testing.T) {
	t.Run("no_token_configured_allows_all", func(t *testing.T) {
		w := httptest.NewRecorder()
		BearerAuth("")(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("valid_header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer secret")
		w := httptest.NewRecorder()
		BearerAuth("secret")(okHandler()).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("query_param_fallback_for_sse", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?token=secret", nil)
		w := httptest.NewRecorder()
		BearerAuth("secret")(okHandler()).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("wrong_token_rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		BearerAuth("secret")(okHandler()).ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("missing_token_rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		BearerAuth("secret")(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	Logger(zerolog.Nop())(Recoverer(panicky)).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight_no_allowlist", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		w := httptest.NewRecorder()
		CORS(nil)(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing Access-Control-Allow-Origin")
		}
	})

	t.Run("allowed_origin_echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		CORS([]string{"https://app.example.com"})(okHandler()).ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("unlisted_origin_not_allowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		CORS([]string{"https://app.example.com"})(okHandler()).ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want unset", got)
		}
	})
}

func TestLoggerSkipsHealthPolls(t *testing.T) {
	var buf strings.Builder
	log := zerolog.New(&buf)
	mw := Logger(log)(okHandler())

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/health", nil))
	if buf.Len() != 0 {
		t.Errorf("health poll was logged: %s", buf.String())
	}

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/sessions/s1", nil))
	if !strings.Contains(buf.String(), "/api/v1/sessions/s1") {
		t.Errorf("session request not logged: %s", buf.String())
	}
}
