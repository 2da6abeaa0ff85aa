package assess

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// QueueCounters is a point-in-time snapshot of a Queue's state, exposed for
// introspection.
type QueueCounters struct {
	Active    int
	Pending   int
	Completed int
	Failed    int
}

// Queue is a bounded-concurrency façade around AssessChunk. Submissions
// beyond MaxConcurrent wait; the underlying semaphore serves waiters in the
// order they arrived (FIFO drain), and an optional rate limiter smooths
// bursts of submissions.
type Queue struct {
	runner ProcessRunner
	cfg    Config
	sem    *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	pending   int
	active    int
	completed int
	failed    int
}

// NewQueue builds a Queue. ratePerSecond <= 0 disables rate smoothing
// (submissions are gated only by MaxConcurrent).
func NewQueue(runner ProcessRunner, cfg Config, ratePerSecond float64) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		runner: runner,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	if ratePerSecond > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return q
}

// Submit enqueues a single chunk for assessment and blocks until it has run
// (or ctx is cancelled). Failures propagate only to the caller that
// submitted the failing chunk; they never affect other submitters.
func (q *Queue) Submit(ctx context.Context, chunk event.Chunk) ([]event.Assessment, error) {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	if err := q.sem.Acquire(ctx, 1); err != nil {
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
		return nil, err
	}
	defer q.sem.Release(1)

	q.mu.Lock()
	q.pending--
	q.active++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}()

	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			q.mu.Lock()
			q.failed++
			q.mu.Unlock()
			return nil, err
		}
	}

	results := assessChunkVariant(ctx, q.runner, chunk, q.cfg, false, "")

	q.mu.Lock()
	if len(results) == 0 {
		q.failed++
	} else {
		q.completed++
	}
	q.mu.Unlock()

	return results, nil
}

// Counters returns a snapshot of the queue's current state.
func (q *Queue) Counters() QueueCounters {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueCounters{Active: q.active, Pending: q.pending, Completed: q.completed, Failed: q.failed}
}
