package output

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/synth"
)

func sampleDS() event.DistilledSession {
	now := time.Now()
	return event.DistilledSession{
		SourceSessionIDs: []string{"s1"},
		SourcePlatforms:  []event.Platform{event.PlatformClaude},
		TotalTokens:      42,
		DroppedChunks:    1,
		DistilledAt:      now,
		Chunks: []event.Chunk{
			{
				ID: "c1", SessionID: "s1", StartIndex: 0, EndIndex: 1,
				ImportanceAvg: 7.5, TokenEstimate: 20,
				Events: []event.ParsedEvent{
					{Role: event.RoleUser, Content: "fix the bug"},
					{Role: event.RoleAssistant, Content: "done"},
					{Role: event.RoleAssistant, Content: "also fixed the test"},
				},
			},
		},
	}
}

func readNDJSON(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad json line: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestGenerateClaudeConversationChainsParents(t *testing.T) {
	ds := sampleDS()
	path := filepath.Join(t.TempDir(), "build.jsonl")

	out, err := GenerateClaudeConversation(ds, nil, path, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	records := readNDJSON(t, out)
	if len(records) < 4 {
		t.Fatalf("expected at least 4 records (preamble + 1 pair), got %d", len(records))
	}
	if records[0]["parentUuid"] != nil {
		t.Fatalf("expected first record's parent to be null, got %v", records[0]["parentUuid"])
	}
	for i := 1; i < len(records); i++ {
		if records[i]["parentUuid"] != records[i-1]["uuid"] {
			t.Fatalf("record %d parentUuid %v does not match predecessor uuid %v", i, records[i]["parentUuid"], records[i-1]["uuid"])
		}
	}
}

func TestGenerateClaudeConversationUsesTopicTurns(t *testing.T) {
	ds := sampleDS()
	path := filepath.Join(t.TempDir(), "build.jsonl")
	turns := []synth.Turn{{Topic: synth.TopicOverview, Question: "q1", Answer: "a1"}}

	out, err := GenerateClaudeConversation(ds, turns, path, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	records := readNDJSON(t, out)
	// preamble (2) + 1 topic pair (2) = 4
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
}

func TestGenerateClaudeSummaryOneRecordPerChunk(t *testing.T) {
	ds := sampleDS()
	path := filepath.Join(t.TempDir(), "summary.jsonl")

	out, err := GenerateClaudeSummary(ds, path, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	records := readNDJSON(t, out)
	if len(records) != 2 {
		t.Fatalf("expected header + 1 chunk record, got %d", len(records))
	}
	if records[0]["type"] != "summary/system/compact_boundary" {
		t.Fatalf("expected header type, got %v", records[0]["type"])
	}
	if records[1]["type"] != "summary/assistant" {
		t.Fatalf("expected summary/assistant, got %v", records[1]["type"])
	}
}

func TestGenerateCodexEmitsMetadataHeader(t *testing.T) {
	ds := sampleDS()
	path := filepath.Join(t.TempDir(), "codex.jsonl")

	out, err := GenerateCodex(ds, path, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	records := readNDJSON(t, out)
	if len(records) != 2 {
		t.Fatalf("expected metadata + 1 context record, got %d", len(records))
	}
	if records[0]["type"] != "metadata" {
		t.Fatalf("expected metadata header, got %v", records[0]["type"])
	}
	if records[1]["role"] != "assistant" {
		t.Fatalf("expected assistant role, got %v", records[1]["role"])
	}
}

func TestGenerateGeminiMergesConsecutiveSameRole(t *testing.T) {
	ds := sampleDS()
	path := filepath.Join(t.TempDir(), "gemini.json")

	out, err := GenerateGemini(ds, path, Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc geminiDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// user, then merged assistant (2 events -> 1 content entry)
	if len(doc.Contents) != 2 {
		t.Fatalf("expected 2 content entries, got %d: %+v", len(doc.Contents), doc.Contents)
	}
	if doc.Contents[0].Role != "user" || doc.Contents[1].Role != "model" {
		t.Fatalf("unexpected roles: %+v", doc.Contents)
	}
}

func TestGenerateUnknownFormatErrors(t *testing.T) {
	ds := sampleDS()
	_, err := Generate(ds, nil, Format("bogus"), filepath.Join(t.TempDir(), "x"), Options{})
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
