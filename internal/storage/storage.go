package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/config"
)

// AudioStore abstracts recording storage backends.
type AudioStore interface {
	// Save stores a recording. key format: {session_id}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the on-disk path when the recording exists locally.
	// Returns "" for remote-only backends, which forces callers through Open.
	LocalPath(key string) string

	// URL returns a presigned URL for the recording.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the recording.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether the recording exists in any backend.
	Exists(ctx context.Context, key string) bool

	// RemoveSession deletes every recording stored for the session from
	// every backend that holds one.
	RemoveSession(ctx context.Context, sessionID string) error

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates an AudioStore based on config. With no S3 bucket configured
// recordings live purely on local disk. With S3 and local cache enabled the
// store is tiered: local disk is the working copy, S3 the durable backup.
// Returns an error if S3 is configured but unreachable.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (AudioStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil
	}

	return NewTieredStore(s3store, NewLocalStore(audioDir), log), nil
}
