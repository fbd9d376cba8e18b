package ingest

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
)

// Containers the watcher picks up. Matches what the recognizers accept.
var watchedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".webm": true,
}

// FileWatcher monitors the import directory for audio files dropped in by
// the app (AirDrop, rsync, a shared folder) and kicks off pipeline runs for
// them. This is the offline alternative to MQTT announcements.
type FileWatcher struct {
	ctx      context.Context
	runner   Runner
	watchDir string
	backfill bool
	log      zerolog.Logger

	watcher *fsnotify.Watcher

	// Debounce: coalesce rapid Create+Write events while the file is still
	// being copied in.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "backfilling", "watching", "stopped"
}

func NewFileWatcher(ctx context.Context, runner Runner, watchDir string, backfill bool, log zerolog.Logger) *FileWatcher {
	fw := &FileWatcher{
		ctx:            ctx,
		runner:         runner,
		watchDir:       watchDir,
		backfill:       backfill,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
	fw.status.Store("starting")
	return fw
}

// Start initializes the fsnotify watcher over the import directory. When
// backfill is enabled, audio files already present are processed in a
// background goroutine, oldest first.
func (fw *FileWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w

	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return err
	}

	fw.log.Info().Str("watch_dir", fw.watchDir).Msg("import watcher initialized")

	go fw.watchLoop()

	if fw.backfill {
		go fw.backfillExisting()
	} else {
		fw.status.Store("watching")
	}
	return nil
}

// Stop closes the fsnotify watcher.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	if fw.watcher != nil {
		fw.watcher.Close()
	}
	fw.log.Info().
		Int64("files_processed", fw.filesProcessed.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("import watcher stopped")
}

// Status returns the watcher state for the health endpoint.
func (fw *FileWatcher) Status() string {
	s, _ := fw.status.Load().(string)
	return s
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			fw.scheduleProcess(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces by 500ms so a file still being copied in is read
// only after writes settle.
func (fw *FileWatcher) scheduleProcess(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.processAudioFile(path)
	})
}

// processAudioFile starts a run for a dropped audio file. The session id is
// the file's base name without extension, which is how the app names its
// exports.
func (fw *FileWatcher) processAudioFile(path string) {
	metrics.IngestMessagesTotal.WithLabelValues("watcher").Inc()

	base := filepath.Base(path)
	sessionID := strings.TrimSuffix(base, filepath.Ext(base))
	if sessionID == "" {
		fw.filesSkipped.Add(1)
		return
	}

	if _, err := fw.runner.Run(fw.ctx, pipeline.Request{
		SessionID: sessionID,
		AudioPath: path,
	}); err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("imported file run failed")
		fw.filesSkipped.Add(1)
		return
	}
	fw.filesProcessed.Add(1)
}

// backfillExisting processes audio files already sitting in the import
// directory, oldest first. Runs sequentially: each file is a full pipeline
// run and the interesting resource limits live downstream.
func (fw *FileWatcher) backfillExisting() {
	fw.status.Store("backfilling")
	start := time.Now()

	type fileEntry struct {
		path    string
		modTime time.Time
	}
	var files []fileEntry

	_ = filepath.WalkDir(fw.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !watchedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: path, modTime: info.ModTime()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	fw.log.Info().Int("files", len(files)).Msg("import backfill starting")

	for _, f := range files {
		select {
		case <-fw.ctx.Done():
			fw.log.Info().
				Int64("processed", fw.filesProcessed.Load()).
				Msg("backfill interrupted by shutdown")
			return
		default:
		}
		fw.processAudioFile(f.path)
	}

	fw.status.Store("watching")
	fw.log.Info().
		Int64("processed", fw.filesProcessed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("import backfill complete")
}
