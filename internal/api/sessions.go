package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/cache"
	"github.com/lifewrapped/lw-engine/internal/database"
	"github.com/lifewrapped/lw-engine/internal/model"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
	"github.com/lifewrapped/lw-engine/internal/storage"
)

// Runner starts pipeline runs. Implemented by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type SessionsHandler struct {
	runner Runner
	cache  *cache.SessionCache
	db     *database.DB
	audio  storage.AudioStore
	log    zerolog.Logger
}

func NewSessionsHandler(runner Runner, c *cache.SessionCache, db *database.DB, audio storage.AudioStore, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		runner: runner,
		cache:  c,
		db:     db,
		audio:  audio,
		log:    log.With().Str("handler", "sessions").Logger(),
	}
}

func (h *SessionsHandler) Routes(r chi.Router) {
	r.Post("/sessions/{sessionID}/summarize", h.Summarize)
	r.Get("/sessions/{sessionID}", h.Get)
	r.Get("/sessions", h.List)
	r.Delete("/sessions/{sessionID}", h.Delete)
}

// SummarizeRequest is the optional body of POST /sessions/{id}/summarize.
type SummarizeRequest struct {
	Tier      string `json:"tier,omitempty"`
	Language  string `json:"language,omitempty"`
	AudioKey  string `json:"audio_key,omitempty"`
	AudioPath string `json:"audio_path,omitempty"`
}

// SessionResponse is the summarization result returned to the app.
type SessionResponse struct {
	SessionID   string               `json:"session_id"`
	Tier        model.EngineTier     `json:"tier"`
	Language    string               `json:"language"`
	Transcript  *model.Transcript    `json:"transcript"`
	Summary     *model.SummaryResult `json:"summary"`
	GeneratedAt time.Time            `json:"generated_at"`
	Cached      bool                 `json:"cached"`
}

// Summarize handles POST /api/v1/sessions/{sessionID}/summarize. The run is
// synchronous: the response carries the finished result, and closing the
// connection cancels the run.
func (h *SessionsHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(sessionID) {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var body SummarizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	tier := model.EngineTier(body.Tier)
	if tier != "" && !tier.Valid() {
		WriteError(w, http.StatusBadRequest, "unknown tier "+body.Tier)
		return
	}

	res, err := h.runner.Run(r.Context(), pipeline.Request{
		SessionID: sessionID,
		AudioKey:  body.AudioKey,
		AudioPath: body.AudioPath,
		ForceTier: tier,
		Language:  body.Language,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("summarize failed")
		WriteErrorDetail(w, statusForError(err), errorLabel(err), err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, entryResponse(sessionID, res.Entry, res.FromCache))
}

// Get handles GET /api/v1/sessions/{sessionID}, serving the cached result.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	entry, err := h.cache.Get(r.Context(), sessionID)
	if err != nil {
		WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	if entry == nil {
		WriteError(w, http.StatusNotFound, "session not summarized")
		return
	}
	WriteJSON(w, http.StatusOK, entryResponse(sessionID, entry, true))
}

// List handles GET /api/v1/sessions from the persistent store.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "no persistent store configured")
		return
	}
	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.db.ListSessions(r.Context(), p.Limit, p.Offset)
	if err != nil {
		WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	if rows == nil {
		rows = []database.SessionRow{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": rows,
		"count":    len(rows),
	})
}

// Delete handles DELETE /api/v1/sessions/{sessionID}, forgetting the cached
// and persisted result and removing any stored recordings for the session.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(sessionID) {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	h.cache.Delete(sessionID)

	found := false
	if h.db != nil {
		var err error
		found, err = h.db.DeleteSession(r.Context(), sessionID)
		if err != nil {
			WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
			return
		}
	}

	if h.audio != nil {
		if err := h.audio.RemoveSession(r.Context(), sessionID); err != nil {
			WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"deleted":    found,
	})
}

func entryResponse(sessionID string, e *cache.Entry, cached bool) SessionResponse {
	return SessionResponse{
		SessionID:   sessionID,
		Tier:        e.Tier,
		Language:    e.Transcript.Language,
		Transcript:  e.Transcript,
		Summary:     e.Summary,
		GeneratedAt: e.GeneratedAt,
		Cached:      cached,
	}
}

// statusForError maps pipeline error kinds onto HTTP statuses.
func statusForError(err error) int {
	switch model.KindOf(err) {
	case model.ErrAudioFileNotFound:
		return http.StatusNotFound
	case model.ErrInvalidAudioFormat:
		return http.StatusBadRequest
	case model.ErrNotAvailable:
		return http.StatusServiceUnavailable
	case model.ErrNotAuthorized, model.ErrRecognizerSetupFailed,
		model.ErrRecognitionFailed, model.ErrSummarizationFailed:
		return http.StatusBadGateway
	case model.ErrCancelled:
		// 499: client closed request (nginx convention).
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// validSessionID rejects ids that could escape the per-session key space
// when used as a storage path segment.
func validSessionID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\")
}

func errorLabel(err error) string {
	var e *model.Error
	if errors.As(err, &e) && e.Stage != "" {
		return string(e.Stage) + " failed"
	}
	return "pipeline error"
}
