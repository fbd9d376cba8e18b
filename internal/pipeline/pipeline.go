package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lifewrapped/lw-engine/internal/audio"
	"github.com/lifewrapped/lw-engine/internal/cache"
	"github.com/lifewrapped/lw-engine/internal/events"
	"github.com/lifewrapped/lw-engine/internal/language"
	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/model"
	"github.com/lifewrapped/lw-engine/internal/storage"
	"github.com/lifewrapped/lw-engine/internal/summarize"
	"github.com/lifewrapped/lw-engine/internal/transcribe"
)

// Stage progress windows. Each stage maps its own [0,1] progress into a
// distinct slice of the run so the overall fraction is comparable across
// runs regardless of which tier summarizes.
const (
	transcribeStart = 0.0
	transcribeEnd   = 0.35
	detectEnd       = 0.45
)

// Request asks for one session to be transcribed and summarized.
type Request struct {
	SessionID string
	// AudioKey names a managed recording under the audio directory.
	AudioKey string
	// AudioPath is the caller-reported path, used when no managed key
	// resolves.
	AudioPath string
	// ForceTier pins the summarization tier, bypassing the preference
	// order (but never the privacy exclusion). Empty means policy order.
	ForceTier model.EngineTier
	// Language skips detection when the caller already knows the spoken
	// language.
	Language string
}

// Result is the outcome of a run.
type Result struct {
	Entry     *cache.Entry
	FromCache bool
}

// Options configures a Pipeline.
type Options struct {
	Recognizer transcribe.Recognizer
	Detector   *language.Detector
	Selector   *summarize.Selector
	Cache      *cache.SessionCache
	Bus        *events.Bus
	// Audio serves recordings saved through the upload endpoint; keys that
	// only exist in a remote backend are fetched through it.
	Audio     storage.AudioStore
	AudioDir  string
	ImportDir string
	// Locale is the fallback language when detection yields no result.
	Locale string
	Log    zerolog.Logger
}

// Pipeline runs the transcribe / detect / summarize sequence for a session
// and caches the result. Concurrent requests for the same session are
// coalesced into a single run.
type Pipeline struct {
	recognizer transcribe.Recognizer
	detector   *language.Detector
	selector   *summarize.Selector
	cache      *cache.SessionCache
	bus        *events.Bus
	store      storage.AudioStore
	audioDir   string
	importDir  string
	locale     string
	log        zerolog.Logger

	flight singleflight.Group
	active atomic.Int64
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		recognizer: opts.Recognizer,
		detector:   opts.Detector,
		selector:   opts.Selector,
		cache:      opts.Cache,
		bus:        opts.Bus,
		store:      opts.Audio,
		audioDir:   opts.AudioDir,
		importDir:  opts.ImportDir,
		locale:     opts.Locale,
		log:        opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// ActiveRuns returns the number of runs currently executing.
func (p *Pipeline) ActiveRuns() int {
	return int(p.active.Load())
}

// CachedSessions returns the number of sessions resident in the cache.
func (p *Pipeline) CachedSessions() int {
	return p.cache.Len()
}

// Run executes the pipeline for one session. A second Run for the same
// session while the first is in flight joins it and receives the same
// result; a Run after completion is served from the cache without touching
// the recognizer.
//
// The in-flight run executes under the originating caller's context. When
// that caller disconnects, a joined caller whose own context is still live
// retries once instead of inheriting the cancellation.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	for attempt := 0; ; attempt++ {
		v, err, shared := p.flight.Do(req.SessionID, func() (any, error) {
			return p.run(ctx, req)
		})
		if err != nil {
			if shared && attempt == 0 && ctx.Err() == nil && isCancellation(err) {
				p.flight.Forget(req.SessionID)
				continue
			}
			return nil, err
		}
		return v.(*Result), nil
	}
}

func isCancellation(err error) bool {
	return model.KindOf(err) == model.ErrCancelled || errors.Is(err, context.Canceled)
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, error) {
	p.active.Add(1)
	defer p.active.Add(-1)

	log := p.log.With().Str("session_id", req.SessionID).Logger()
	r := &runState{pipeline: p, sessionID: req.SessionID}

	// 1. Cache check: a session that has already been summarized is instant.
	r.emit(model.StateCheckingCache, "Checking previous results", 0)
	start := time.Now()
	entry, err := p.cache.Get(ctx, req.SessionID)
	metrics.StageDuration.WithLabelValues("cache_check").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	if entry != nil && req.ForceTier == "" {
		log.Debug().Str("tier", string(entry.Tier)).Msg("serving session from cache")
		r.tier = entry.Tier
		r.complete(entry)
		return &Result{Entry: entry, FromCache: true}, nil
	}

	// 2. Locate and sanity-check the recording before selecting a tier so
	// a missing file fails fast without probing any engine.
	path, cleanup, err := p.resolveAudio(ctx, req)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	if err := audio.Validate(path); err != nil {
		return nil, r.fail(ctx, err)
	}

	// 3. Tier selection.
	r.emit(model.StateSelectingTier, "Choosing summarization engine", 0)
	engine, err := p.selector.Select(ctx, req.ForceTier)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.tier = engine.Tier()
	log.Info().
		Str("tier", string(engine.Tier())).
		Str("engine", engine.Name()).
		Str("audio", path).
		Msg("pipeline run starting")

	// 4. Transcription.
	r.emit(model.StateTranscribing, "Transcribing audio", transcribeStart)
	start = time.Now()
	transcript, err := p.recognizer.Transcribe(ctx, path, transcribe.Opts{Language: req.Language},
		func(fraction float64, _ string) {
			r.emit(model.StateTranscribing, "Transcribing audio",
				transcribeStart+fraction*(transcribeEnd-transcribeStart))
		})
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	// 5. Language detection. A caller-supplied language wins; the stage
	// still runs so the fraction advances identically either way.
	r.emit(model.StateDetectingLanguage, "Detecting language", transcribeEnd)
	start = time.Now()
	lang := req.Language
	if lang == "" {
		detected, ok := p.detector.Detect(transcript.Text)
		if ok {
			lang = detected
		} else {
			lang = p.locale
			log.Debug().Str("fallback", lang).Msg("language detection inconclusive")
		}
	}
	transcript.Language = lang
	metrics.StageDuration.WithLabelValues("detect_language").Observe(time.Since(start).Seconds())
	r.emit(model.StateDetectingLanguage, "Detecting language", detectEnd)

	// 6. Summarization, with one permitted degradation to the basic tier.
	summary, err := p.summarize(ctx, r, engine, transcript, lang)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	// 7. Persist. A run cancelled between summary and save still must not
	// cache a result the caller never received.
	if ctx.Err() != nil {
		return nil, r.fail(ctx, model.NewCancelled(model.StateSummarizing))
	}
	if err := p.cache.Put(ctx, req.SessionID, transcript, summary); err != nil {
		return nil, r.fail(ctx, err)
	}

	entry = &cache.Entry{
		Transcript:  transcript,
		Summary:     summary,
		Tier:        summary.Tier,
		GeneratedAt: summary.GeneratedAt,
	}
	r.tier = summary.Tier
	r.complete(entry)
	log.Info().
		Str("tier", string(summary.Tier)).
		Str("language", lang).
		Int("words", transcript.WordCount()).
		Msg("pipeline run completed")
	return &Result{Entry: entry}, nil
}

// resolveAudio locates the session's recording on disk. A recording that only
// exists in a remote storage backend is staged into a temp file; cleanup
// removes the staged copy and is non-nil whenever one was created.
func (p *Pipeline) resolveAudio(ctx context.Context, req Request) (string, func(), error) {
	if p.store != nil && req.AudioKey != "" {
		if local := p.store.LocalPath(req.AudioKey); local != "" {
			return local, nil, nil
		}
		if p.store.Exists(ctx, req.AudioKey) {
			return p.stageRemote(ctx, req.AudioKey)
		}
	}
	if path := audio.Resolve(p.audioDir, p.importDir, req.AudioKey, req.AudioPath); path != "" {
		return path, nil, nil
	}
	missing := req.AudioKey
	if missing == "" {
		missing = req.AudioPath
	}
	return "", nil, model.NewAudioFileNotFound(missing)
}

// stageRemote copies a remote-only recording to a local temp file so the
// recognizer can read it from disk.
func (p *Pipeline) stageRemote(ctx context.Context, key string) (string, func(), error) {
	rc, err := p.store.Open(ctx, key)
	if err != nil {
		return "", nil, model.NewStorageFailed("fetch recording "+key, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "lw-audio-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, model.NewStorageFailed("stage recording "+key, err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return "", cleanup, model.NewStorageFailed("stage recording "+key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", cleanup, model.NewStorageFailed("stage recording "+key, err)
	}
	p.log.Debug().Str("key", key).Str("path", tmp.Name()).Msg("staged remote recording")
	return tmp.Name(), cleanup, nil
}

func (p *Pipeline) summarize(ctx context.Context, r *runState, engine summarize.Engine, t *model.Transcript, lang string) (*model.SummaryResult, error) {
	onProgress := func(fraction float64) {
		r.emit(model.StateSummarizing, engine.Phase(), detectEnd+fraction*(1-detectEnd))
	}
	r.emit(model.StateSummarizing, engine.Phase(), detectEnd)

	start := time.Now()
	summary, err := engine.Summarize(ctx, t, lang, onProgress)
	metrics.StageDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds())
	if err == nil {
		return summary, nil
	}
	if ctx.Err() != nil || model.KindOf(err) == model.ErrCancelled {
		return nil, err
	}

	policy := p.selector.Policy()
	basic := p.selector.Basic()
	if !policy.FallbackToBasic || engine.Tier() == model.TierBasic || basic == nil {
		return nil, err
	}

	p.log.Warn().Err(err).
		Str("tier", string(engine.Tier())).
		Msg("engine failed, degrading to basic tier")
	engine = basic
	r.emit(model.StateSummarizing, engine.Phase(), detectEnd)
	start = time.Now()
	summary, err = engine.Summarize(ctx, t, lang, onProgress)
	metrics.StageDuration.WithLabelValues("summarize_fallback").Observe(time.Since(start).Seconds())
	return summary, err
}

// runState tracks the monotonic progress fraction of a run and publishes
// progress and terminal events.
type runState struct {
	pipeline  *Pipeline
	sessionID string
	tier      model.EngineTier

	mu   sync.Mutex
	last float64
}

// emit publishes a progress event. The fraction is clamped so it never moves
// backwards within the run, even when a stage reports out of order.
func (r *runState) emit(state model.RunState, phase string, fraction float64) {
	r.mu.Lock()
	if fraction < r.last {
		fraction = r.last
	}
	if fraction > 1 {
		fraction = 1
	}
	r.last = fraction
	r.mu.Unlock()

	if r.pipeline.bus == nil {
		return
	}
	r.pipeline.bus.Publish(events.TypeProgress, r.sessionID, model.ProgressState{
		SessionID: r.sessionID,
		State:     state,
		Phase:     phase,
		Fraction:  fraction,
		Tier:      r.tier,
	})
}

func (r *runState) complete(entry *cache.Entry) {
	r.emit(model.StateCompleted, "Done", 1)
	metrics.PipelineRunsTotal.WithLabelValues(string(r.tier), "completed").Inc()
	if r.pipeline.bus != nil {
		r.pipeline.bus.Publish(events.TypeCompleted, r.sessionID, map[string]any{
			"session_id":   r.sessionID,
			"tier":         entry.Tier,
			"language":     entry.Transcript.Language,
			"generated_at": entry.GeneratedAt,
		})
	}
}

// fail publishes the terminal failure event and returns err unchanged so
// callers can propagate it directly.
func (r *runState) fail(ctx context.Context, err error) error {
	state := model.StateFailed
	eventType := events.TypeFailed
	status := "failed"
	if isCancellation(err) || ctx.Err() != nil {
		state = model.StateCancelled
		eventType = events.TypeCancelled
		status = "cancelled"
	}

	metrics.PipelineRunsTotal.WithLabelValues(string(r.tier), status).Inc()
	if r.pipeline.bus != nil {
		r.pipeline.bus.Publish(eventType, r.sessionID, map[string]any{
			"session_id": r.sessionID,
			"state":      state,
			"error":      err.Error(),
		})
	}
	return err
}
