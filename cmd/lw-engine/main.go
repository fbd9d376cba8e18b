package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/api"
	"github.com/lifewrapped/lw-engine/internal/cache"
	"github.com/lifewrapped/lw-engine/internal/config"
	"github.com/lifewrapped/lw-engine/internal/database"
	"github.com/lifewrapped/lw-engine/internal/events"
	"github.com/lifewrapped/lw-engine/internal/ingest"
	"github.com/lifewrapped/lw-engine/internal/language"
	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/mqttclient"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
	"github.com/lifewrapped/lw-engine/internal/storage"
	"github.com/lifewrapped/lw-engine/internal/summarize"
	"github.com/lifewrapped/lw-engine/internal/transcribe"
)

var version = "dev"

// engineStats adapts live components to the metrics collector.
type engineStats struct {
	pipeline *pipeline.Pipeline
	bus      *events.Bus
}

func (s engineStats) ActiveRuns() int         { return s.pipeline.ActiveRuns() }
func (s engineStats) CachedSessions() int     { return s.pipeline.CachedSessions() }
func (s engineStats) SSESubscriberCount() int { return s.bus.SubscriberCount() }

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "http-addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..error)")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "managed recording directory")
	flag.StringVar(&overrides.ImportDir, "import-dir", "", "watched import directory")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("lw-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database is optional: without it the session cache is memory-only.
	var db *database.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize schema")
		}
	} else {
		log.Warn().Msg("no DATABASE_URL, session cache is memory-only")
	}

	// Audio store: local disk, optionally backed by S3.
	audioStore, err := storage.New(cfg.S3, cfg.AudioDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio store")
	}

	// Summarization engines, one per tier.
	order, err := cfg.TierOrder()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tier preference")
	}
	engines := []summarize.Engine{
		summarize.NewBasicEngine(),
		summarize.NewLocalEngine(cfg.LocalModelURL, cfg.LocalModel, cfg.LocalTimeout),
		summarize.NewPlatformEngine(cfg.PlatformAPIKey, cfg.PlatformModel),
		summarize.NewExternalEngine(cfg.ExternalProvider, cfg.ExternalBaseURL,
			cfg.ExternalAPIKey, cfg.ExternalModel, cfg.ExternalTimeout),
	}
	selector := summarize.NewSelector(summarize.Policy{
		Order:           order,
		PrivateOnly:     cfg.PrivateOnly,
		FallbackToBasic: cfg.FallbackToBasic,
	}, engines, log)

	var store cache.Store
	if db != nil {
		store = db
	}
	sessionCache := cache.New(store, log)
	bus := events.NewBus(1024)

	recognizer := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel,
		cfg.WhisperAPIKey, cfg.WhisperTimeout)

	pipe := pipeline.New(pipeline.Options{
		Recognizer: recognizer,
		Detector:   language.NewDetector(),
		Selector:   selector,
		Cache:      sessionCache,
		Bus:        bus,
		Audio:      audioStore,
		AudioDir:   cfg.AudioDir,
		ImportDir:  cfg.ImportDir,
		Locale:     cfg.Locale,
		Log:        log,
	})

	if db != nil {
		prometheus.MustRegister(metrics.NewCollector(db.Pool, engineStats{pipeline: pipe, bus: bus}))
	} else {
		prometheus.MustRegister(metrics.NewCollector(nil, engineStats{pipeline: pipe, bus: bus}))
	}

	// MQTT ingest is optional.
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topics:    cfg.MQTTTopics,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()

		announcer := ingest.NewAnnouncer(ctx, pipe, log)
		mqtt.SetMessageHandler(announcer.HandleMessage)
	}

	// Import directory watcher is optional.
	var watcher *ingest.FileWatcher
	if cfg.ImportDir != "" {
		watcher = ingest.NewFileWatcher(ctx, pipe, cfg.ImportDir, true, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start import watcher")
		}
		defer watcher.Stop()
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Runner:  pipe,
		Cache:   sessionCache,
		DB:      db,
		Audio:   audioStore,
		Events:  bus,
		MQTT:    mqtt,
		Engines: engines,
		WatcherStatus: func() string {
			if watcher == nil {
				return ""
			}
			return watcher.Status()
		},
	}, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("lw-engine stopped")
}
