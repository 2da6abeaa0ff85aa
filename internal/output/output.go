// Package output renders a distilled session into the wire format a given
// coding-assistant CLI natively understands, so the build can be resumed
// or injected as context (C17).
package output

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/synth"
)

// Format names the target shape a generator produces.
type Format string

const (
	FormatClaudeConversation Format = "claude-conversation"
	FormatClaudeSummary      Format = "claude-summary"
	FormatCodex              Format = "codex"
	FormatGemini             Format = "gemini"
)

// Options carries per-generator knobs that don't belong on DistilledSession
// itself (the thing being serialized must stay a read-only view).
type Options struct {
	SessionID string // shared sessionId stamped on Claude records; generated if empty
	CWD       string // working directory recorded in Claude records
	Version   string // Claude CLI version string recorded in records
	Model     string // model name stamped on assistant records
}

func (o Options) withDefaults() Options {
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	if o.CWD == "" {
		if wd, err := os.Getwd(); err == nil {
			o.CWD = wd
		}
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	if o.Model == "" {
		o.Model = "distilled"
	}
	return o
}

// Generate dispatches to the generator for format, writing NDJSON or a JSON
// document to path. turns is optional: pass the output of synth.Synthesize
// to group the Claude conversation generator's Q&A pairs by topic; pass nil
// to bypass synthesis and emit one pair per chunk instead. The other three
// generators always operate directly on ds.Chunks, per spec §4.12.
func Generate(ds event.DistilledSession, turns []synth.Turn, format Format, path string, opts Options) (string, error) {
	opts = opts.withDefaults()

	switch format {
	case FormatClaudeConversation:
		return GenerateClaudeConversation(ds, turns, path, opts)
	case FormatClaudeSummary:
		return GenerateClaudeSummary(ds, path, opts)
	case FormatCodex:
		return GenerateCodex(ds, path, opts)
	case FormatGemini:
		return GenerateGemini(ds, path, opts)
	default:
		return "", fmt.Errorf("output: unknown format %q", format)
	}
}

// qaPair is the common unit the Claude conversation generator renders: a
// user question and an assistant answer, optionally anchored to the chunks
// that produced it.
type qaPair struct {
	question string
	answer   string
	chunks   []event.Chunk
}

// pairsFromTurns groups ds by synthesized topic when turns is non-empty,
// otherwise falls back to one pair per chunk in narrative (StartIndex) order.
func pairsFromTurns(ds event.DistilledSession, turns []synth.Turn) []qaPair {
	if len(turns) > 0 {
		pairs := make([]qaPair, 0, len(turns))
		for _, t := range turns {
			pairs = append(pairs, qaPair{question: t.Question, answer: t.Answer})
		}
		return pairs
	}

	pairs := make([]qaPair, 0, len(ds.Chunks))
	for _, c := range ds.Chunks {
		pairs = append(pairs, qaPair{
			question: "What happened in this part of the session?",
			answer:   concatEvents(c),
			chunks:   []event.Chunk{c},
		})
	}
	return pairs
}

func concatEvents(c event.Chunk) string {
	s := ""
	for i, ev := range c.Events {
		if i > 0 {
			s += "\n\n"
		}
		s += ev.Content
	}
	return s
}

// timestampWalker hands out monotonically increasing timestamps, jittered
// within the bounds spec §4.12 assigns to user vs. assistant turns.
type timestampWalker struct {
	t time.Time
}

func newTimestampWalker() *timestampWalker {
	return &timestampWalker{t: time.Now().UTC()}
}

func (w *timestampWalker) next(role event.Role) time.Time {
	var step time.Duration
	if role == event.RoleUser {
		step = time.Duration(30+rand.Intn(91)) * time.Second // 30-120s
	} else {
		step = time.Duration(5+rand.Intn(26)) * time.Second // 5-30s
	}
	w.t = w.t.Add(step)
	return w.t
}

func writeNDJSON(path string, records []any) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("output: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("output: create file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("output: encode record: %w", err)
		}
	}
	return path, nil
}

func writeJSON(path string, doc any) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("output: create dir: %w", err)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("output: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("output: write file: %w", err)
	}
	return path, nil
}
