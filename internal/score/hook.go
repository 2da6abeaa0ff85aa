package score

import (
	"sync/atomic"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Recorder is the minimal capability the real-time scoring hook decorates:
// something that durably records a canonical event. journal.Recorder does
// not satisfy it as is (its Record takes a session ID and returns an error);
// tests supply an in-memory stub.
type Recorder interface {
	Record(e event.CanonicalEvent)
}

// Counters tracks lock-free statistics about the scoring hook, mirroring
// the teacher's usage.Counters (atomic counters updated on every observed
// record, read without locking).
type Counters struct {
	recorded atomic.Int64
	errors   atomic.Int64
}

func (c *Counters) Recorded() int64 { return c.recorded.Load() }
func (c *Counters) Errors() int64   { return c.errors.Load() }

// ScoringRecorder wraps a Recorder so that every event written to the
// journal is scored first. Scoring is synchronous, allocation-free, and
// cannot fail: any panic recovered while scoring still results in the
// original event being recorded with the base score, so a caller can never
// lose a write because of a scoring bug.
type ScoringRecorder struct {
	next     Recorder
	weights  Weights
	counters Counters
}

// NewScoringRecorder builds a ScoringRecorder delegating to next.
func NewScoringRecorder(next Recorder) *ScoringRecorder {
	return &ScoringRecorder{next: next, weights: DefaultWeights}
}

// WithWeights overrides the scoring weights used by this recorder.
func (r *ScoringRecorder) WithWeights(w Weights) *ScoringRecorder {
	r.weights = w
	return r
}

// Counters exposes the lock-free introspection counters.
func (r *ScoringRecorder) Counters() *Counters { return &r.counters }

// Record scores e.ParsedEvent, attaches ImportanceScore, and delegates to
// the wrapped Recorder. The original payload is never altered beyond the
// added score field.
func (r *ScoringRecorder) Record(e event.CanonicalEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.counters.errors.Add(1)
			base := baseScore
			e.ImportanceScore = &base
			if r.next != nil {
				r.next.Record(e)
			}
		}
	}()

	s := EventWithWeights(e.ParsedEvent, r.weights)
	e.ImportanceScore = &s
	r.counters.recorded.Add(1)
	if r.next != nil {
		r.next.Record(e)
	}
}
