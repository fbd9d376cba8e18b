package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/lifewrapped/lw-engine/internal/events"
)

// EventSource is the progress event bus the SSE endpoint reads from.
// Implemented by *events.Bus.
type EventSource interface {
	Subscribe(filter events.Filter) (<-chan events.Event, func())
	ReplaySince(lastEventID string, filter events.Filter) []events.Event
}

type EventsHandler struct {
	source EventSource
}

func NewEventsHandler(source EventSource) *EventsHandler {
	return &EventsHandler{source: source}
}

func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/events/stream", h.StreamEvents)
}

// StreamEvents opens an SSE connection and pushes filtered pipeline events.
// The app subscribes with ?sessions={id} while a run is active to drive its
// progress bar.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := events.Filter{
		SessionIDs: QueryStringList(r, "sessions"),
		Types:      QueryStringList(r, "types"),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Replay missed events on reconnect so a progress bar never jumps
	// backwards to zero after a network blip.
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID != "" {
		for _, e := range h.source.ReplaySince(lastEventID, filter) {
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
		}
		flusher.Flush()
	}

	ch, cancel := h.source.Subscribe(filter)
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
