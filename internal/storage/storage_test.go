package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second open (re-migration) failed: %v", err)
	}
	defer s2.Close()
}

func TestUpsertChunkAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := event.Chunk{
		ID:            "c1",
		SessionID:     "s1",
		StartIndex:    0,
		EndIndex:      1,
		TokenEstimate: 10,
		Events:        []event.ParsedEvent{{Role: event.RoleUser, Content: "fix the authentication bug"}},
	}
	if err := s.UpsertChunk(ctx, c, 7.5); err != nil {
		t.Fatalf("upsert chunk: %v", err)
	}

	results, err := s.SearchChunks(ctx, "authentication OR bug")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Fatalf("expected 1 hit for c1, got %+v", results)
	}
	if results[0].Consensus != 7.5 {
		t.Fatalf("expected consensus 7.5, got %v", results[0].Consensus)
	}
}

func TestUpsertChunkReplaceUpdatesFTS(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := event.Chunk{ID: "c1", SessionID: "s1", Events: []event.ParsedEvent{{Content: "original text"}}}
	if err := s.UpsertChunk(ctx, c, 5); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c.Events = []event.ParsedEvent{{Content: "rewritten words"}}
	if err := s.UpsertChunk(ctx, c, 5); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	stale, _ := s.SearchChunks(ctx, "original")
	if len(stale) != 0 {
		t.Fatalf("expected stale fts row replaced, got %+v", stale)
	}
	fresh, _ := s.SearchChunks(ctx, "rewritten")
	if len(fresh) != 1 {
		t.Fatalf("expected fresh fts row present, got %+v", fresh)
	}
}

func TestSyncQueueFlow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.EnqueueSync(ctx, "store_observation", `{"text":"hi"}`)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := s.PendingSyncEntries(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("expected 1 pending entry with id %d, got %+v", id, pending)
	}

	if err := s.MarkSynced(ctx, id); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, _ = s.PendingSyncEntries(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected 0 pending after sync, got %d", len(pending))
	}
}

func TestInsertAssessmentAndExternalSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := event.Assessment{ID: "a1", ChunkID: "c1", Provider: event.ProviderClaude, Score: 8, CreatedAt: time.Now()}
	if err := s.InsertAssessment(ctx, a); err != nil {
		t.Fatalf("insert assessment: %v", err)
	}

	if err := s.UpsertExternalSession(ctx, "s1", event.PlatformClaude, "/tmp/s1.jsonl", "build-1"); err != nil {
		t.Fatalf("upsert external session: %v", err)
	}
	buildID, err := s.LatestBuildForSession(ctx, "s1")
	if err != nil {
		t.Fatalf("latest build: %v", err)
	}
	if buildID != "build-1" {
		t.Fatalf("expected build-1, got %q", buildID)
	}
}

func TestSearchChunksEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	results, err := s.SearchChunks(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %+v", results)
	}
}
