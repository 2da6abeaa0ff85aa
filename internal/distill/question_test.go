package distill

import (
	"context"
	"errors"
	"testing"

	"github.com/ronaldeddings/unified-agent/internal/assess"
	"github.com/ronaldeddings/unified-agent/internal/event"
)

type fakeFTS struct {
	results []ScoredChunk
	err     error
}

func (f fakeFTS) SearchChunks(_ context.Context, _ string) ([]ScoredChunk, error) {
	return f.results, f.err
}

type fakeMem struct {
	results []ScoredChunk
	err     error
}

func (f fakeMem) SearchAsChunks(_ context.Context, _ string, _ int) ([]ScoredChunk, error) {
	return f.results, f.err
}

// fakeRunner stands in for the provider CLIs: it returns empty stdout for
// every command, which never parses as a rating.
type fakeRunner struct{}

func newFakeRunner() fakeRunner { return fakeRunner{} }

func (fakeRunner) Run(_ context.Context, _ string, _ []string) (string, error) {
	return "", nil
}

func TestBuildFTSQueryDropsShortTerms(t *testing.T) {
	got := BuildFTSQuery("how do I fix the bug?")
	want := "how OR fix OR the OR bug"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildFTSQueryAllStopwords(t *testing.T) {
	if got := BuildFTSQuery("a b of"); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}
}

func TestQueryMergesAndDedupes(t *testing.T) {
	shared := event.Chunk{ID: "dup", SessionID: "s", StartIndex: 0, TokenEstimate: 10,
		Events: []event.ParsedEvent{{Content: "shared content block"}}}
	dupHigherConsensus := shared
	dupHigherConsensus.ID = "dup2"

	fts := fakeFTS{results: []ScoredChunk{{Chunk: shared, Consensus: 7}}}
	mem := fakeMem{results: []ScoredChunk{{Chunk: dupHigherConsensus, Consensus: 9}}}

	runner := newFakeRunner()
	result := Query(context.Background(), "what happened with the shared bug", fts, mem, runner, assess.Config{}, QuestionConfig{ReRank: false})

	if result.SearchStats.TotalCandidates != 1 {
		t.Fatalf("expected dedupe to 1 candidate, got %d", result.SearchStats.TotalCandidates)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected 1 chunk in result, got %d", len(result.Chunks))
	}
}

func TestQueryFTSFailureDoesNotBlockMemory(t *testing.T) {
	mem := fakeMem{results: []ScoredChunk{
		{Chunk: event.Chunk{ID: "m1", StartIndex: 0, TokenEstimate: 5, Events: []event.ParsedEvent{{Content: "memory hit"}}}, Consensus: 9},
	}}
	fts := fakeFTS{err: errors.New("fts unavailable")}
	runner := newFakeRunner()

	result := Query(context.Background(), "some question here", fts, mem, runner, assess.Config{}, QuestionConfig{ReRank: false})
	if result.SearchStats.FTSMatches != 0 {
		t.Fatalf("expected 0 fts matches, got %d", result.SearchStats.FTSMatches)
	}
	if result.SearchStats.MemoryMatches != 1 {
		t.Fatalf("expected 1 memory match, got %d", result.SearchStats.MemoryMatches)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected memory result to survive, got %d chunks", len(result.Chunks))
	}
}

func TestQueryReRankFailureLeavesScoreZero(t *testing.T) {
	c := event.Chunk{ID: "c1", StartIndex: 0, TokenEstimate: 5, Events: []event.ParsedEvent{{Content: "some content"}}}
	fts := fakeFTS{results: []ScoredChunk{{Chunk: c, Consensus: 6}}}
	mem := fakeMem{}

	runner := newFakeRunner() // no configured responses; every provider call fails to parse
	assessCfg := assess.Config{Providers: []assess.ProviderConfig{{Provider: event.ProviderClaude, Command: "claude"}}}

	result := Query(context.Background(), "question", fts, mem, runner, assessCfg, QuestionConfig{ReRank: true})
	if len(result.Chunks) != 1 {
		t.Fatalf("expected candidate to remain eligible despite re-rank failure, got %d chunks", len(result.Chunks))
	}
}
