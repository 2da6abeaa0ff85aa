package synth

import (
	"testing"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

func mkChunk(id, content string, ts time.Time) event.Chunk {
	t := ts
	return event.Chunk{
		ID:     id,
		Events: []event.ParsedEvent{{Role: event.RoleUser, Content: content, Timestamp: &t}},
	}
}

func TestSynthesizeClassifiesByKeyword(t *testing.T) {
	now := time.Now()
	chunks := []event.Chunk{
		mkChunk("c1", "this project's architecture uses a layered service design", now),
		mkChunk("c2", "we found a bug that causes the build to fail", now.Add(time.Minute)),
	}
	turns := Synthesize(chunks)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(turns), turns)
	}
	// narrative order: architecture before known-issues
	if turns[0].Topic != TopicArchitecture {
		t.Fatalf("expected architecture first, got %v", turns[0].Topic)
	}
	if turns[1].Topic != TopicKnownIssues {
		t.Fatalf("expected known-issues second, got %v", turns[1].Topic)
	}
}

func TestSynthesizeOmitsEmptyTopics(t *testing.T) {
	now := time.Now()
	chunks := []event.Chunk{mkChunk("c1", "a general overview summary of the project purpose", now)}
	turns := Synthesize(chunks)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Topic != TopicOverview {
		t.Fatalf("expected overview, got %v", turns[0].Topic)
	}
}

func TestSynthesizeDedupesSimilarChunks(t *testing.T) {
	now := time.Now()
	chunks := []event.Chunk{
		mkChunk("c1", "the architecture uses a layered service design with clean components", now),
		mkChunk("c2", "the architecture uses a layered service design with clean component", now.Add(time.Minute)),
	}
	turns := Synthesize(chunks)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn after dedupe, got %d", len(turns))
	}
}

func TestSynthesizeKeepsDistinctChunksInSameTopic(t *testing.T) {
	now := time.Now()
	chunks := []event.Chunk{
		mkChunk("c1", "architecture design component service layer one", now),
		mkChunk("c2", "totally different architecture design component service layer discussion about caching and queues and workers", now.Add(time.Minute)),
	}
	turns := Synthesize(chunks)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn (same topic), got %d", len(turns))
	}
	if turns[0].Answer == "" {
		t.Fatalf("expected non-empty rendered answer")
	}
}

func TestQuestionForEveryTopicIsNonEmpty(t *testing.T) {
	for _, topic := range narrativeOrder {
		if questionFor(topic) == "" {
			t.Fatalf("expected non-empty question for topic %v", topic)
		}
	}
}

func TestJaccardIdenticalSetsIsOne(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick brown fox")
	if jaccard(a, b) != 1 {
		t.Fatalf("expected jaccard 1 for identical sets")
	}
}

func TestJaccardDisjointSetsIsZero(t *testing.T) {
	a := tokenSet("apple banana")
	b := tokenSet("cherry date")
	if jaccard(a, b) != 0 {
		t.Fatalf("expected jaccard 0 for disjoint sets")
	}
}
