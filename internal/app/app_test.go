package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ronaldeddings/unified-agent/internal/config"
	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/output"
)

func testApp(t *testing.T) (*App, func()) {
	t.Helper()
	dir := t.TempDir()

	memSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cfg := config.NewDefaultConfig()
	cfg.StoragePath = filepath.Join(dir, "distill.db")
	cfg.MemoryServiceURL = memSrv.URL

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a, func() {
		a.Close()
		memSrv.Close()
	}
}

func writeClaudeFixture(t *testing.T, dir string) string {
	t.Helper()
	sessionDir := filepath.Join(dir, ".claude", "projects", "p1")
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(sessionDir, "session.jsonl")
	lines := []string{
		`{"type":"user","message":{"role":"user","content":"what does this repo do"},"cwd":"/repo"}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"it distills sessions"}]}}`,
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseAndChunkProducesChunksFromClaudeFixture(t *testing.T) {
	a, cleanup := testApp(t)
	defer cleanup()

	dir := t.TempDir()
	path := writeClaudeFixture(t, dir)

	chunks, err := a.ParseAndChunk(context.Background(), "sess-1", path)
	if err != nil {
		t.Fatalf("parse and chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if chunks[0].SessionID != "sess-1" {
		t.Fatalf("unexpected session id: %s", chunks[0].SessionID)
	}
}

func TestBuildWritesOutputFile(t *testing.T) {
	a, cleanup := testApp(t)
	defer cleanup()

	ds := event.DistilledSession{
		SourceSessionIDs: []string{"s1"},
		SourcePlatforms:  []event.Platform{event.PlatformClaude},
		Chunks: []event.Chunk{
			{ID: "c1", SessionID: "s1", Events: []event.ParsedEvent{
				{Type: "user", Role: event.RoleUser, Content: "hello"},
				{Type: "assistant", Role: event.RoleAssistant, Content: "hi there"},
			}},
		},
	}

	outPath := filepath.Join(t.TempDir(), "build.jsonl")
	written, err := a.Build(ds, output.FormatCodex, outPath, output.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := os.Stat(written); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestReportAndUnload(t *testing.T) {
	a, cleanup := testApp(t)
	defer cleanup()

	if _, ok := a.Report(); ok {
		t.Fatalf("expected no build reported initially")
	}

	a.setLastBuild(event.DistilledSession{TotalTokens: 42})
	ds, ok := a.Report()
	if !ok || ds.TotalTokens != 42 {
		t.Fatalf("expected reported build with 42 tokens, got %+v ok=%v", ds, ok)
	}

	a.Unload()
	if _, ok := a.Report(); ok {
		t.Fatalf("expected no build reported after Unload")
	}
}

func TestStatusSourcesReflectQueueCounters(t *testing.T) {
	a, cleanup := testApp(t)
	defer cleanup()

	sources := a.StatusSources()
	counters := sources.QueueCounters()
	if counters.Active != 0 || counters.Pending != 0 {
		t.Fatalf("expected idle queue counters, got %+v", counters)
	}
}
