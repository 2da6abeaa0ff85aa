package distill

import (
	"testing"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

func chunkOf(id string, startIndex, tokens int) event.Chunk {
	return event.Chunk{ID: id, SessionID: "s1", StartIndex: startIndex, EndIndex: startIndex, TokenEstimate: tokens}
}

func TestBudgetFiltersLowConsensus(t *testing.T) {
	entries := []ScoredChunk{
		{Chunk: chunkOf("a", 0, 100), Consensus: 4},
		{Chunk: chunkOf("b", 1, 100), Consensus: 6},
	}
	ds, stats := Budget(entries, DefaultBudgetConfig)
	if len(ds.Chunks) != 1 || ds.Chunks[0].ID != "b" {
		t.Fatalf("expected only chunk b, got %+v", ds.Chunks)
	}
	if stats.DroppedByConsensus != 1 {
		t.Fatalf("expected 1 dropped by consensus, got %d", stats.DroppedByConsensus)
	}
}

func TestBudgetGreedyStopsAtBudget(t *testing.T) {
	entries := []ScoredChunk{
		{Chunk: chunkOf("a", 0, 60), Consensus: 9},
		{Chunk: chunkOf("b", 1, 60), Consensus: 8},
	}
	cfg := BudgetConfig{MaxTokens: 100, MinConsensusScore: 0, SortBy: SortConsensus}
	ds, stats := Budget(entries, cfg)
	if len(ds.Chunks) != 1 {
		t.Fatalf("expected 1 selected chunk, got %d", len(ds.Chunks))
	}
	if stats.DroppedByBudget != 1 {
		t.Fatalf("expected 1 dropped by budget, got %d", stats.DroppedByBudget)
	}
}

func TestBudgetNarrativeReorder(t *testing.T) {
	entries := []ScoredChunk{
		{Chunk: chunkOf("late", 10, 10), Consensus: 9},
		{Chunk: chunkOf("early", 1, 10), Consensus: 5},
	}
	cfg := BudgetConfig{MaxTokens: 1000, MinConsensusScore: 0, SortBy: SortConsensus}
	ds, _ := Budget(entries, cfg)
	if len(ds.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(ds.Chunks))
	}
	if ds.Chunks[0].ID != "early" || ds.Chunks[1].ID != "late" {
		t.Fatalf("expected narrative order early,late; got %s,%s", ds.Chunks[0].ID, ds.Chunks[1].ID)
	}
}

func TestBudgetChronologicalMode(t *testing.T) {
	entries := []ScoredChunk{
		{Chunk: chunkOf("a", 0, 10), Consensus: 9},
		{Chunk: chunkOf("b", 1, 10), Consensus: 6},
	}
	cfg := BudgetConfig{MaxTokens: 10, MinConsensusScore: 0, SortBy: SortChronological}
	ds, _ := Budget(entries, cfg)
	// Chronological ranks by startIndex descending (most recent first);
	// with budget for only one chunk, "b" (startIndex=1) should win despite
	// lower consensus.
	if len(ds.Chunks) != 1 || ds.Chunks[0].ID != "b" {
		t.Fatalf("expected chunk b selected, got %+v", ds.Chunks)
	}
}

func TestBudgetHybridDegenerateRangeIsZero(t *testing.T) {
	entries := []ScoredChunk{
		{Chunk: chunkOf("a", 5, 10), Consensus: 7},
		{Chunk: chunkOf("b", 5, 10), Consensus: 7},
	}
	cfg := BudgetConfig{MaxTokens: 1000, MinConsensusScore: 0, SortBy: SortHybrid}
	ds, _ := Budget(entries, cfg)
	if len(ds.Chunks) != 2 {
		t.Fatalf("expected both chunks selected, got %d", len(ds.Chunks))
	}
}

func TestNormalizeDegenerateRange(t *testing.T) {
	if got := normalize(5, 5, 5); got != 0 {
		t.Fatalf("expected 0 for degenerate range, got %v", got)
	}
}
