// Package journal is the append-only per-meta-session event log backing the
// real-time importance hook (C6/C22): every canonical event is durably
// recorded without blocking the scoring path that produced it.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// jsonCodec is sonic's standard-library-compatible API, used here instead of
// encoding/json because this is the single hottest write path in the
// process (every canonical event, for every active session).
var jsonCodec = sonic.ConfigStd

const (
	defaultFsyncEveryN  = 20
	defaultFsyncEvery   = 2 * time.Second
	defaultQueueDepth   = 1024
	defaultRotateBytes  = 64 * 1024 * 1024
)

// Recorder appends CanonicalEvents to a per-session JSONL journal file, each
// session on its own background goroutine, so Record never blocks on file
// I/O.
type Recorder struct {
	dataDir string

	mu      sync.Mutex
	files   map[string]*sessionJournal
	closeCh chan struct{}
	closed  bool
}

type sessionJournal struct {
	path       string
	f          *os.File
	w          *bufio.Writer
	queue      chan event.CanonicalEvent
	stopCh     chan struct{}
	wg         sync.WaitGroup
	sinceSync  int
	bytesInCur int64
}

// NewRecorder builds a Recorder rooted at dataDir/journal.
func NewRecorder(dataDir string) *Recorder {
	return &Recorder{
		dataDir: filepath.Join(dataDir, "journal"),
		files:   make(map[string]*sessionJournal),
	}
}

// Record enqueues ev for durable append to sessionID's journal file. It
// never blocks on disk I/O; under extreme backpressure the oldest queued
// entry is dropped (logged) rather than blocking the caller — the scored
// event already returned to the caller is never affected, only the
// durability write.
func (r *Recorder) Record(sessionID string, ev event.CanonicalEvent) error {
	sj, err := r.sessionFor(sessionID)
	if err != nil {
		return err
	}

	select {
	case sj.queue <- ev:
		return nil
	default:
	}

	// Queue full: drop oldest, then enqueue. Never blocks.
	select {
	case <-sj.queue:
		logging.Warnf("journal: queue full for session %s, dropping oldest entry", sessionID)
	default:
	}
	select {
	case sj.queue <- ev:
	default:
		logging.Warnf("journal: queue still full for session %s, dropping newest entry", sessionID)
	}
	return nil
}

func (r *Recorder) sessionFor(sessionID string) (*sessionJournal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("journal: recorder closed")
	}
	if sj, ok := r.files[sessionID]; ok {
		return sj, nil
	}

	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}
	path := filepath.Join(r.dataDir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}

	sj := &sessionJournal{
		path:       path,
		f:          f,
		w:          bufio.NewWriter(f),
		queue:      make(chan event.CanonicalEvent, defaultQueueDepth),
		stopCh:     make(chan struct{}),
		bytesInCur: size,
	}
	sj.wg.Add(1)
	go sj.loop()
	r.files[sessionID] = sj
	return sj, nil
}

func (sj *sessionJournal) loop() {
	defer sj.wg.Done()
	ticker := time.NewTicker(defaultFsyncEvery)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sj.queue:
			if !ok {
				sj.flush(true)
				return
			}
			sj.appendLine(ev)
		case <-ticker.C:
			sj.flush(true)
		case <-sj.stopCh:
			sj.drain()
			sj.flush(true)
			return
		}
	}
}

func (sj *sessionJournal) drain() {
	for {
		select {
		case ev := <-sj.queue:
			sj.appendLine(ev)
		default:
			return
		}
	}
}

func (sj *sessionJournal) appendLine(ev event.CanonicalEvent) {
	b, err := jsonCodec.Marshal(ev)
	if err != nil {
		logging.WithError(err).Warnf("journal: failed to marshal event for %s", sj.path)
		return
	}
	b = append(b, '\n')
	n, err := sj.w.Write(b)
	if err != nil {
		logging.WithError(err).Warnf("journal: failed to write to %s", sj.path)
		return
	}
	sj.bytesInCur += int64(n)
	sj.sinceSync++
	if sj.sinceSync >= defaultFsyncEveryN {
		sj.flush(true)
	}
	if sj.bytesInCur >= defaultRotateBytes {
		sj.rotate()
	}
}

func (sj *sessionJournal) flush(fsync bool) {
	if err := sj.w.Flush(); err != nil {
		logging.WithError(err).Warnf("journal: flush failed for %s", sj.path)
		return
	}
	if fsync {
		_ = sj.f.Sync()
	}
	sj.sinceSync = 0
}

// rotate closes the current segment, renames it aside with a timestamp
// suffix, gzip-compresses it in place, and opens a fresh segment.
func (sj *sessionJournal) rotate() {
	sj.flush(true)
	if err := sj.f.Close(); err != nil {
		logging.WithError(err).Warnf("journal: close before rotate failed for %s", sj.path)
	}

	rotatedPath := fmt.Sprintf("%s.%d", sj.path, time.Now().UnixNano())
	if err := os.Rename(sj.path, rotatedPath); err != nil {
		logging.WithError(err).Warnf("journal: rename before rotate failed for %s", sj.path)
	} else if err := gzipInPlace(rotatedPath); err != nil {
		logging.WithError(err).Warnf("journal: gzip rotation failed for %s", rotatedPath)
	}

	f, err := os.OpenFile(sj.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.WithError(err).Warnf("journal: reopen after rotate failed for %s", sj.path)
		return
	}
	sj.f = f
	sj.w = bufio.NewWriter(f)
	sj.bytesInCur = 0
}

func gzipInPlace(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dstPath := path + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Close flushes and closes every open session journal.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	files := r.files
	r.mu.Unlock()

	for _, sj := range files {
		close(sj.stopCh)
		sj.wg.Wait()
		if err := sj.f.Close(); err != nil {
			logging.WithError(err).Warnf("journal: close failed for %s", sj.path)
		}
	}
	return nil
}
