package chunk

import (
	"strings"
	"testing"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

func mkEvents(n int, content string) ([]event.ParsedEvent, []int) {
	events := make([]event.ParsedEvent, n)
	scores := make([]int, n)
	for i := 0; i < n; i++ {
		events[i] = event.ParsedEvent{Type: "assistant", Role: event.RoleAssistant, Content: content}
		scores[i] = 50
	}
	return events, scores
}

func TestBuildDropsBelowThreshold(t *testing.T) {
	events, scores := mkEvents(5, "hi")
	scores[2] = 10
	chunks := Build("s1", events, scores, DefaultConfig)
	total := 0
	for _, c := range chunks {
		total += len(c.Events)
	}
	if total != 4 {
		t.Fatalf("expected 4 surviving events across chunks, got %d", total)
	}
}

func TestBuildClosesOnMaxEvents(t *testing.T) {
	events, scores := mkEvents(45, "x")
	chunks := Build("s1", events, scores, DefaultConfig)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks[:len(chunks)-1] {
		if len(c.Events) > DefaultConfig.MaxEventsPerChunk {
			t.Fatalf("chunk exceeds max events: %d", len(c.Events))
		}
	}
}

func TestBuildClosesOnTokenBudget(t *testing.T) {
	// Distinct words rather than a single repeated rune: a long run of one
	// character BPE-compresses far below its naive char-count estimate, so
	// this uses ordinary prose sized with a generous margin over the budget.
	phrase := "alpha bravo charlie delta echo foxtrot golf hotel india juliet "
	big := strings.Repeat(phrase, DefaultConfig.MaxTokensPerChunk/4)
	events, scores := mkEvents(3, big)
	chunks := Build("s1", events, scores, DefaultConfig)
	// Each event alone exceeds the budget, so each sits in its own chunk.
	if len(chunks) != 3 {
		t.Fatalf("expected 3 singleton chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Events) != 1 {
			t.Fatalf("expected singleton chunk, got %d events", len(c.Events))
		}
	}
}

func TestBuildOverlapSeedsNextWindow(t *testing.T) {
	cfg := Config{MinImportanceThreshold: 30, MaxEventsPerChunk: 5, MaxTokensPerChunk: 100000, OverlapEvents: 2}
	events, scores := mkEvents(8, "x")
	chunks := Build("s1", events, scores, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[1].StartIndex != chunks[0].EndIndex-1 {
		t.Fatalf("expected second chunk to start with overlap from first: first end=%d second start=%d",
			chunks[0].EndIndex, chunks[1].StartIndex)
	}
}

func TestBuildEmptyWhenAllDropped(t *testing.T) {
	events, scores := mkEvents(3, "x")
	for i := range scores {
		scores[i] = 0
	}
	chunks := Build("s1", events, scores, DefaultConfig)
	if chunks != nil {
		t.Fatalf("expected nil chunks, got %v", chunks)
	}
}

func TestTokenEstimate(t *testing.T) {
	if got := TokenEstimate(""); got != 0 {
		t.Fatalf("expected 0 for empty content, got %d", got)
	}
	short := TokenEstimate("abcd")
	long := TokenEstimate(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50))
	if short <= 0 {
		t.Fatalf("expected a positive estimate for non-empty content, got %d", short)
	}
	if long <= short {
		t.Fatalf("expected longer content to estimate more tokens: short=%d long=%d", short, long)
	}
}
