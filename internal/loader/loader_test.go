package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeBuild(t *testing.T, dir, name, cwd string, modTime time.Time) string {
	t.Helper()
	lines := []string{
		`{"type":"user","cwd":"` + cwd + `","message":{"role":"user","content":"Summarize the build."}}`,
		`{"type":"assistant","cwd":"` + cwd + `","message":{"role":"assistant","content":[{"type":"text","text":"overview text"}]}}`,
		`{"type":"user","cwd":"` + cwd + `","message":{"role":"user","content":"What is the architecture?"}}`,
		`{"type":"assistant","cwd":"` + cwd + `","message":{"role":"assistant","content":[{"type":"text","text":"it's layered"}]}}`,
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestFindLatestPrefersMatchingCWD(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeBuild(t, dir, "old-build.jsonl", "/projects/other", now.Add(-time.Hour))
	match := writeBuild(t, dir, "new-build.jsonl", "/projects/mine", now)
	writeBuild(t, dir, "newest-build.jsonl", "/projects/other2", now.Add(time.Hour))

	found, err := FindLatest(dir, "/projects/mine")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if found != match {
		t.Fatalf("expected %s, got %s", match, found)
	}
}

func TestFindLatestFallsBackToMostRecentOverall(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeBuild(t, dir, "old-build.jsonl", "/projects/a", now.Add(-time.Hour))
	newest := writeBuild(t, dir, "newest-build.jsonl", "/projects/b", now)

	found, err := FindLatest(dir, "/projects/nonexistent")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if found != newest {
		t.Fatalf("expected fallback to newest %s, got %s", newest, found)
	}
}

func TestLoadParsesTurnsAndCountsTopicPairs(t *testing.T) {
	dir := t.TempDir()
	path := writeBuild(t, dir, "b-build.jsonl", "/projects/mine", time.Now())

	b, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(b.Turns))
	}
	if b.TopicPairs != 1 {
		t.Fatalf("expected 1 topic pair (preamble excluded), got %d", b.TopicPairs)
	}
}

func TestLoadPopulatesSessionIDAndCwd(t *testing.T) {
	dir := t.TempDir()
	path := writeBuild(t, dir, "b-build.jsonl", "/projects/mine", time.Now())

	b, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.SessionID != "b" {
		t.Fatalf("expected session id %q, got %q", "b", b.SessionID)
	}
	if b.Cwd != "/projects/mine" {
		t.Fatalf("expected cwd %q, got %q", "/projects/mine", b.Cwd)
	}
}

func TestContextBlockOnlyIncludesAssistantTurns(t *testing.T) {
	dir := t.TempDir()
	path := writeBuild(t, dir, "b-build.jsonl", "/projects/mine", time.Now())
	b, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	block := b.ContextBlock()
	if !strings.Contains(block, "overview text") || !strings.Contains(block, "it's layered") {
		t.Fatalf("expected assistant content in block: %s", block)
	}
	if strings.Contains(block, "Summarize the build") || strings.Contains(block, "What is the architecture") {
		t.Fatalf("expected user turns excluded from block: %s", block)
	}
	if !strings.HasPrefix(block, contextHeader) || !strings.HasSuffix(block, contextFooter) {
		t.Fatalf("expected block wrapped in markers: %s", block)
	}
}

func TestForClaudeReturnsPath(t *testing.T) {
	b := Build{Path: "/tmp/whatever-build.jsonl"}
	if b.ForClaude() != b.Path {
		t.Fatalf("expected ForClaude to return the path")
	}
}
