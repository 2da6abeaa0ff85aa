package assess

import (
	"context"
	"sync"
	"testing"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

func TestQueueSubmitTracksCounters(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["claude"] = `{"relevance":8,"signalDensity":7,"overallScore":8,"rationale":"ok"}`
	cfg := Config{Providers: []ProviderConfig{{Provider: event.ProviderClaude, Command: "claude"}}, MaxConcurrent: 2}
	q := NewQueue(runner, cfg, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk := event.Chunk{ID: "c", Events: []event.ParsedEvent{{Content: "x"}}}
			if _, err := q.Submit(context.Background(), chunk); err != nil {
				t.Errorf("submit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	counters := q.Counters()
	if counters.Completed != 5 {
		t.Fatalf("expected 5 completed, got %+v", counters)
	}
	if counters.Active != 0 || counters.Pending != 0 {
		t.Fatalf("expected drained queue, got %+v", counters)
	}
}

func TestQueueSubmitFailureIsolated(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["claude"] = `not json`
	cfg := Config{Providers: []ProviderConfig{{Provider: event.ProviderClaude, Command: "claude"}}}
	q := NewQueue(runner, cfg, 0)

	chunk := event.Chunk{ID: "c", Events: []event.ParsedEvent{{Content: "x"}}}
	results, err := q.Submit(context.Background(), chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no assessments, got %d", len(results))
	}
	if q.Counters().Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", q.Counters())
	}
}
