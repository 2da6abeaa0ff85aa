// Package score computes a 0-100 importance score for a parsed event and
// attaches it synchronously on the persistence path.
package score

import (
	"strings"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Weights holds the additive contributions applied by Event. A zero
// LongContentThreshold falls back to DefaultWeights' threshold; every other
// zero field contributes nothing.
type Weights struct {
	ToolUse      int
	Error        int
	UserPrompt   int
	CodeBlock    int
	FileEdit     int
	LongContent  int
	SystemEvent  int
	HookEvent    int
	LongContentThreshold int
}

// DefaultWeights matches spec §4.2's default magnitudes.
var DefaultWeights = Weights{
	ToolUse:              15,
	Error:                20,
	UserPrompt:           10,
	CodeBlock:            10,
	FileEdit:             12,
	LongContent:          -5,
	SystemEvent:          -20,
	HookEvent:            -15,
	LongContentThreshold: 2000,
}

const baseScore = 50

var fileEditTools = map[string]bool{
	"edit":       true,
	"write":      true,
	"notebookedit": true,
}

// Event computes the importance score for a single parsed event. It is a
// pure function: equal inputs produce equal outputs, no global state is
// read, and it never fails — any input, however malformed, yields a score
// in [0,100].
func Event(e event.ParsedEvent) int {
	return EventWithWeights(e, DefaultWeights)
}

// EventWithWeights is Event parameterized by weight overrides, used by
// callers (and tests) that want non-default magnitudes.
func EventWithWeights(e event.ParsedEvent, w Weights) int {
	s := baseScore

	if e.ToolName != "" || e.ToolInput != nil {
		s += w.ToolUse
	}
	if e.IsError {
		s += w.Error
	}
	if e.Role == event.RoleUser && e.Type != "tool_result" {
		s += w.UserPrompt
	}
	if strings.Contains(e.Content, "```") {
		s += w.CodeBlock
	}
	if fileEditTools[strings.ToLower(e.ToolName)] {
		s += w.FileEdit
	}
	threshold := w.LongContentThreshold
	if threshold == 0 {
		threshold = DefaultWeights.LongContentThreshold
	}
	if len(e.Content) > threshold {
		s += w.LongContent
	}
	if e.Role == event.RoleSystem || e.Type == "system" {
		s += w.SystemEvent
	}
	if strings.HasPrefix(e.Type, "hook") || strings.HasPrefix(e.Type, "custom_hook") {
		s += w.HookEvent
	}

	return clamp(s, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
