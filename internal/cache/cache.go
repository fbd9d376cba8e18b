package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/model"
)

// Entry is one cached session result. Presence of an entry means the pipeline
// is skipped entirely on subsequent requests for that session.
type Entry struct {
	Transcript  *model.Transcript
	Summary     *model.SummaryResult
	Tier        model.EngineTier
	GeneratedAt time.Time
}

// Store is the persistent backing for the cache. A nil Store leaves the cache
// memory-only.
type Store interface {
	SaveSession(ctx context.Context, sessionID string, t *model.Transcript, s *model.SummaryResult) error
	// LoadSession returns (nil, nil, nil) when the session is not stored.
	LoadSession(ctx context.Context, sessionID string) (*model.Transcript, *model.SummaryResult, error)
}

// SessionCache holds completed (Transcript, SummaryResult) pairs keyed by
// session id. At most one entry per session; Put is last-write-wins so a
// re-summarization at a higher tier replaces the old result. There is no
// TTL or size eviction: a cached session stays instant forever.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	store   Store
	log     zerolog.Logger
}

// New creates a session cache. store may be nil.
func New(store Store, log zerolog.Logger) *SessionCache {
	return &SessionCache{
		entries: make(map[string]*Entry),
		store:   store,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// Get returns the cached entry for sessionID, reading through to the
// persistent store on a memory miss. (nil, nil) means not cached; a non-nil
// error is a StorageFailed the caller must surface, never swallow.
func (c *SessionCache) Get(ctx context.Context, sessionID string) (*Entry, error) {
	c.mu.RLock()
	e, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if ok {
		metrics.CacheHitsTotal.Inc()
		return e, nil
	}

	if c.store == nil {
		metrics.CacheMissesTotal.Inc()
		return nil, nil
	}

	t, s, err := c.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, model.NewStorageFailed("load session", err)
	}
	if t == nil || s == nil {
		metrics.CacheMissesTotal.Inc()
		return nil, nil
	}

	e = &Entry{Transcript: t, Summary: s, Tier: s.Tier, GeneratedAt: s.GeneratedAt}
	c.mu.Lock()
	c.entries[sessionID] = e
	c.mu.Unlock()

	metrics.CacheHitsTotal.Inc()
	c.log.Debug().Str("session_id", sessionID).Msg("session loaded from store")
	return e, nil
}

// Put stores the result for sessionID, overwriting any prior entry, and
// writes through to the persistent store when one is configured. A store
// failure is returned as StorageFailed; the in-memory entry is still kept so
// the session stays instant for this process.
func (c *SessionCache) Put(ctx context.Context, sessionID string, t *model.Transcript, s *model.SummaryResult) error {
	e := &Entry{Transcript: t, Summary: s, Tier: s.Tier, GeneratedAt: s.GeneratedAt}

	c.mu.Lock()
	c.entries[sessionID] = e
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.SaveSession(ctx, sessionID, t, s); err != nil {
		c.log.Error().Err(err).Str("session_id", sessionID).Msg("session persist failed")
		return model.NewStorageFailed("save session", err)
	}
	return nil
}

// Delete drops the in-memory entry for sessionID. Persistent rows are the
// caller's concern; the cache only forgets what it holds.
func (c *SessionCache) Delete(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}

// Len returns the number of in-memory entries.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
