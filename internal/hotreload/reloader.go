// Package hotreload watches a CAPIO-CL workflow document on disk and
// atomically swaps the active engine when it changes. It is trimmed
// from the teacher's pkg/hotreload.ConfigReloader: the same
// fsnotify-plus-debounce-plus-atomic-swap shape, without the
// hash-based polling fallback or backup rotation, neither of which has
// a meaningful analogue for a workflow document.
package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/High-Performance-IO/capiocl-go/pkg/codec"
	"github.com/High-Performance-IO/capiocl-go/pkg/engine"
)

// Config controls the reloader's debounce behavior.
type Config struct {
	DebounceInterval time.Duration
	ParseOptions     []codec.ParseOption
}

// Stats reports the reloader's lifetime activity.
type Stats struct {
	TotalReloads      int64
	SuccessfulReloads int64
	FailedReloads     int64
	LastReloadTime    time.Time
	LastError         string
}

// Reloader watches documentPath and keeps an *engine.Engine current
// with its contents.
type Reloader struct {
	cfg          Config
	documentPath string
	logger       *logrus.Logger

	watcher *fsnotify.Watcher

	current atomic.Pointer[engine.Engine]

	onReloadSuccess func(*engine.Engine)
	onReloadError   func(error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// New constructs a Reloader for documentPath. A nil logger falls back
// to logrus.StandardLogger(). The initial document is NOT parsed until
// Start is called.
func New(cfg Config, documentPath string, logger *logrus.Logger) (*Reloader, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hotreload: create file watcher: %w", err)
	}

	return &Reloader{
		cfg:          cfg,
		documentPath: documentPath,
		logger:       logger,
		watcher:      watcher,
	}, nil
}

// SetCallbacks installs the hooks invoked after a successful or failed
// reload. Neither is required.
func (r *Reloader) SetCallbacks(onSuccess func(*engine.Engine), onError func(error)) {
	r.onReloadSuccess = onSuccess
	r.onReloadError = onError
}

// Current returns the most recently loaded engine, or nil before the
// first successful load.
func (r *Reloader) Current() *engine.Engine {
	return r.current.Load()
}

// Start performs the initial parse, begins watching documentPath's
// containing directory (events are filtered down to documentPath), and
// launches the debounce loop.
func (r *Reloader) Start() error {
	if r.running.Load() {
		return fmt.Errorf("hotreload: reloader already running")
	}

	if err := r.reload(); err != nil {
		return fmt.Errorf("hotreload: initial load failed: %w", err)
	}

	absPath, err := filepath.Abs(r.documentPath)
	if err != nil {
		return fmt.Errorf("hotreload: resolve document path: %w", err)
	}
	if err := r.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("hotreload: watch document directory: %w", err)
	}
	r.documentPath = absPath

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.watch()

	r.running.Store(true)
	r.logger.WithField("document", r.documentPath).Info("hotreload started")
	return nil
}

// Stop cancels the watch loop, closes the fsnotify watcher, and joins
// the background goroutine.
func (r *Reloader) Stop() error {
	if !r.running.Load() {
		return nil
	}
	r.running.Store(false)
	r.cancel()
	_ = r.watcher.Close()
	r.wg.Wait()
	return nil
}

// Stats returns a snapshot of the reloader's lifetime counters.
func (r *Reloader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reloader) watch() {
	defer r.wg.Done()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-r.ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(event) {
				continue
			}
			r.logger.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("document change detected")
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(r.cfg.DebounceInterval)
			pending = true

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Error("document watcher error")

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := r.reload(); err != nil {
				r.logger.WithError(err).Error("document reload failed")
			}
		}
	}
}

func (r *Reloader) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	absPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return absPath == r.documentPath
}

func (r *Reloader) reload() error {
	start := time.Now()

	r.mu.Lock()
	r.stats.TotalReloads++
	r.stats.LastReloadTime = start
	r.mu.Unlock()

	raw, err := os.ReadFile(r.documentPath)
	if err != nil {
		r.recordFailure(err)
		return err
	}

	e, err := codec.Parse(raw, r.cfg.ParseOptions...)
	if err != nil {
		r.recordFailure(err)
		return err
	}

	r.current.Store(e)

	r.mu.Lock()
	r.stats.SuccessfulReloads++
	r.stats.LastError = ""
	r.mu.Unlock()

	if r.onReloadSuccess != nil {
		r.onReloadSuccess(e)
	}
	r.logger.WithField("reload_time", time.Since(start)).Info("document reload completed")
	return nil
}

func (r *Reloader) recordFailure(err error) {
	r.mu.Lock()
	r.stats.FailedReloads++
	r.stats.LastError = err.Error()
	r.mu.Unlock()

	if r.onReloadError != nil {
		r.onReloadError(err)
	}
}
