package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/cache"
	"github.com/lifewrapped/lw-engine/internal/config"
	"github.com/lifewrapped/lw-engine/internal/database"
	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/mqttclient"
	"github.com/lifewrapped/lw-engine/internal/storage"
	"github.com/lifewrapped/lw-engine/internal/summarize"
)

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Runner  Runner
	Cache   *cache.SessionCache
	DB      *database.DB
	Audio   storage.AudioStore
	Events  EventSource
	MQTT    *mqttclient.Client
	Engines []summarize.Engine
	// WatcherStatus reports the import watcher state, "" when disabled.
	WatcherStatus func() string
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	// Unauthenticated: health and metrics are for the local supervisor.
	health := NewHealthHandler(deps, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	sessions := NewSessionsHandler(deps.Runner, deps.Cache, deps.DB, deps.Audio, log)
	events := NewEventsHandler(deps.Events)
	upload := NewUploadHandler(deps.Audio, deps.Runner, log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		sessions.Routes(r)
		events.Routes(r)
		upload.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
