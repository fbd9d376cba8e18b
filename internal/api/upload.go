package api

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/pipeline"
	"github.com/lifewrapped/lw-engine/internal/storage"
)

// UploadHandler receives recordings from the app over HTTP and hands them to
// the audio store.
type UploadHandler struct {
	audio  storage.AudioStore
	runner Runner
	log    zerolog.Logger
}

func NewUploadHandler(audio storage.AudioStore, runner Runner, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		audio:  audio,
		runner: runner,
		log:    log.With().Str("handler", "upload").Logger(),
	}
}

func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/sessions/{sessionID}/audio", h.Upload)
}

// Upload handles POST /api/v1/sessions/{sessionID}/audio. The recording is a
// multipart "audio" field; with ?summarize=true a pipeline run is started in
// the background once the file is stored.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(sessionID) {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := r.ParseMultipartForm(128 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		WriteError(w, http.StatusBadRequest, "upload has no filename")
		return
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	key := sessionID + "/" + filename
	if err := h.audio.Save(r.Context(), key, data, contentType); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("recording save failed")
		WriteErrorDetail(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}

	h.log.Info().
		Str("session_id", sessionID).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("recording uploaded")

	run := false
	if v, ok := QueryBool(r, "summarize"); ok && v {
		run = true
		go func() {
			// Detached from the request: upload acceptance should not
			// hold the connection for the whole pipeline run.
			if _, err := h.runner.Run(context.Background(), pipeline.Request{
				SessionID: sessionID,
				AudioKey:  key,
			}); err != nil {
				h.log.Warn().Err(err).Str("session_id", sessionID).Msg("post-upload run failed")
			}
		}()
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
		"audio_key":  key,
		"bytes":      len(data),
		"summarize":  run,
	})
}
