// Package registry resolves which platform parser applies to a given
// session file: first by path heuristic, then by inspecting the first
// non-empty record's shape.
package registry

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/parser"
)

// ErrNoMatch is the distinguishable "unmatched" sentinel returned by
// Resolve when no parser fits. It is not an exception: callers check for
// it like any other value.
var ErrNoMatch = noMatch{}

type noMatch struct{}

func (noMatch) Error() string { return "registry: no parser matched" }

// Registry holds the registered parsers and resolves a path/record to one
// of them.
type Registry struct {
	parsers []parser.Parser
}

// New builds a Registry with the three built-in platform parsers.
func New() *Registry {
	return &Registry{parsers: []parser.Parser{
		parser.NewClaude(),
		parser.NewCodex(),
		parser.NewGemini(),
	}}
}

// Register adds an additional parser, most-specific first.
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// ResolveByPath returns the parser whose Detect heuristic matches filePath,
// or ErrNoMatch if none do.
func (r *Registry) ResolveByPath(filePath string) (parser.Parser, error) {
	for _, p := range r.parsers {
		if p.Detect(filePath) {
			return p, nil
		}
	}
	return nil, ErrNoMatch
}

// ResolveByPathOrContent first tries ResolveByPath; failing that, it peeks
// at the first non-empty line/prefix of content and applies the record-shape
// heuristics of spec §4.1.
func (r *Registry) ResolveByPathOrContent(filePath string, content io.Reader) (parser.Parser, error) {
	if p, err := r.ResolveByPath(filePath); err == nil {
		return p, nil
	}

	data, err := io.ReadAll(io.LimitReader(content, 64*1024))
	if err != nil {
		return nil, err
	}
	return r.resolveByFirstRecord(string(data))
}

func (r *Registry) resolveByFirstRecord(content string) (parser.Parser, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrNoMatch
	}

	if trimmed[0] == '[' {
		return r.byPlatform(event.PlatformGemini)
	}

	line := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		line = trimmed[:idx]
	}
	if !gjson.Valid(line) {
		return nil, ErrNoMatch
	}
	rec := gjson.Parse(line)
	typ := rec.Get("type").String()

	switch typ {
	case "assistant", "user", "system", "summary":
		if rec.Get("message").Exists() {
			return r.byPlatform(event.PlatformClaude)
		}
	case "item.completed", "turn.completed":
		return r.byPlatform(event.PlatformCodex)
	case "message", "tool_call", "tool_result":
		return r.byPlatform(event.PlatformGemini)
	}
	if rec.Get("content.parts").Exists() || rec.Get("parts").Exists() {
		return r.byPlatform(event.PlatformGemini)
	}

	return nil, ErrNoMatch
}

func (r *Registry) byPlatform(p event.Platform) (parser.Parser, error) {
	for _, candidate := range r.parsers {
		if candidate.Platform() == p {
			return candidate, nil
		}
	}
	return nil, ErrNoMatch
}
