// Package parser streams a platform's raw session file into canonical
// ParsedEvent records. Each parser is total: it never terminates on
// malformed input, and it never panics.
package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Parser is the contract every platform parser implements.
type Parser interface {
	// Platform is this parser's platform identity.
	Platform() event.Platform

	// Detect is a cheap path-based heuristic; it never opens the file.
	Detect(filePath string) bool

	// Parse streams source into a sequence of ParsedEvent, invoking emit
	// once per recognized (or unknown/raw) record. Parse never returns an
	// error for malformed records — those are skipped — but does return an
	// error if source itself cannot be read at all (e.g. io error mid
	// stream after a successful partial parse still yields the events
	// emitted so far, with the error returned alongside).
	Parse(source io.Reader, emit func(event.ParsedEvent)) error
}

// ParseString is a convenience wrapper accepting an in-memory string.
func ParseString(p Parser, s string, emit func(event.ParsedEvent)) error {
	return p.Parse(strings.NewReader(s), emit)
}

// ParseAll drains a Parser into a slice, for callers that don't need
// streaming (tests, small files).
func ParseAll(p Parser, source io.Reader) ([]event.ParsedEvent, error) {
	var out []event.ParsedEvent
	err := p.Parse(source, func(e event.ParsedEvent) { out = append(out, e) })
	return out, err
}

// scanLines is the shared line-oriented reader used by parsers whose
// on-disk format is newline-delimited JSON. It buffers partial lines and
// flushes the remainder at end-of-stream, per spec §4.1's parsing contract.
func scanLines(source io.Reader, handle func(line string)) error {
	reader := bufio.NewReaderSize(source, 64*1024)
	var pending strings.Builder
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			pending.Write(buf[:n])
			for {
				s := pending.String()
				idx := strings.IndexByte(s, '\n')
				if idx < 0 {
					break
				}
				line := s[:idx]
				pending.Reset()
				pending.WriteString(s[idx+1:])
				if strings.TrimSpace(line) != "" {
					handle(line)
				}
			}
		}
		if err == io.EOF {
			if rest := strings.TrimSpace(pending.String()); rest != "" {
				handle(rest)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
