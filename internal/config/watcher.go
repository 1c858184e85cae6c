package config

import (
	"context"
	"sync"
	"time"

	"nerddash/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and reloads it.
// Reloaded settings apply to the next reconnect cycle, never to a
// timer already scheduled.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(*Config)
	lastEvent   time.Time
	pending     bool
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for the given config file path.
// onChange is invoked with the freshly loaded config after each settled
// change; load failures are logged and the previous config stays live.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.path); err != nil {
		// File may not exist yet
		logging.ConfigWarn("watcher: initial watch of %s failed: %v", w.path, err)
	} else {
		logging.Config("watcher: watching %s", w.path)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("watcher: close error: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.lastEvent = time.Now()
			w.pending = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("watcher: %v", err)

		case <-ticker.C:
			w.mu.Lock()
			settled := w.pending && time.Since(w.lastEvent) >= w.debounceDur
			if settled {
				w.pending = false
			}
			w.mu.Unlock()
			if settled {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.ConfigWarn("watcher: reload of %s failed: %v", w.path, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logging.ConfigWarn("watcher: reloaded config invalid, keeping previous: %v", err)
		return
	}
	logging.Config("watcher: config reloaded from %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
