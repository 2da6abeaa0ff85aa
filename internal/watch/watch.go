// Package watch polls configured session directories for new files on a
// fixed interval, reporting newly-discovered paths and scan errors through
// callbacks (C19).
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/logging"
	"github.com/ronaldeddings/unified-agent/internal/relay"
)

// DefaultInterval is the fixed poll cadence spec §4.13 defaults to.
const DefaultInterval = 5 * time.Second

// OnNewPath is invoked once per newly-discovered session file. Any panic it
// raises is recovered so a single misbehaving callback can't kill the poll
// loop.
type OnNewPath func(path string)

// OnScanError is invoked when a directory scan fails; it never stops polling.
type OnScanError func(dir string, err error)

// Watcher polls a fixed set of directories for new files.
type Watcher struct {
	dirs     []string
	interval time.Duration
	onNew    OnNewPath
	onError  OnScanError
	relay    relay.Publisher

	mu      sync.Mutex
	known   map[string]struct{}
	seeded  bool
	ticker  *time.Ticker
	stopCh  chan struct{}
	running bool
}

// New builds a Watcher over dirs. interval <= 0 falls back to DefaultInterval.
func New(dirs []string, interval time.Duration, onNew OnNewPath, onError OnScanError) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		dirs:     dirs,
		interval: interval,
		onNew:    onNew,
		onError:  onError,
		relay:    relay.NullRelay{},
		known:    make(map[string]struct{}),
	}
}

// SetRelay wires a relay.Publisher to fan session-discovered events to
// (best-effort, non-blocking, per C25). Passing nil restores the no-op
// default. Must be called before Start.
func (w *Watcher) SetRelay(p relay.Publisher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p == nil {
		p = relay.NullRelay{}
	}
	w.relay = p
}

// Start begins polling. Calling Start on an already-running Watcher is a
// no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	w.scan(true) // baseline seed: first poll never reports "new" paths

	w.ticker = time.NewTicker(w.interval)
	go func() {
		for {
			select {
			case <-stopCh:
				return
			case <-w.ticker.C:
				w.scan(false)
			}
		}
	}()
}

// Stop cancels the poll timer and clears discovered state. Calling Stop on
// a non-running Watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.ticker != nil {
		w.ticker.Stop()
	}
	w.known = make(map[string]struct{})
	w.seeded = false
}

func (w *Watcher) scan(seeding bool) {
	w.mu.Lock()
	dirs := append([]string(nil), w.dirs...)
	w.mu.Unlock()

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.reportError(dir, err)
			continue
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())

			w.mu.Lock()
			_, known := w.known[path]
			if !known {
				w.known[path] = struct{}{}
			}
			w.mu.Unlock()

			if !known && !seeding {
				w.reportNew(path)
			}
		}
	}
}

func (w *Watcher) reportNew(path string) {
	w.mu.Lock()
	r := w.relay
	w.mu.Unlock()
	relay.PublishDiscovery(context.Background(), r, path)

	if w.onNew == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("watch: onNew callback panicked for %s: %v", path, r)
		}
	}()
	w.onNew(path)
}

func (w *Watcher) reportError(dir string, err error) {
	if w.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("watch: onError callback panicked for %s: %v", dir, r)
		}
	}()
	w.onError(dir, err)
}
