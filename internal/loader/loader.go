// Package loader finds the most relevant previously-built distillation
// artifact for a project and prepares it for injection into a fresh
// coding-assistant session (C18).
package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Turn is one ordered record parsed out of a build artifact.
type Turn struct {
	Role    event.Role
	Content string
}

// Build is a parsed distillation artifact ready for injection.
type Build struct {
	Path       string
	Turns      []Turn
	TopicPairs int
	// SessionID identifies this artifact for memory-service observations:
	// the build filename with its "-build.jsonl" suffix stripped.
	SessionID string
	// Cwd is the project directory recorded in the artifact's first record.
	Cwd string
}

const buildSuffix = "-build.jsonl"

// FindLatest scans dir for "*-build.jsonl" artifacts and picks the most
// recent one whose first record's cwd matches projectPath (normalized via
// filepath.Clean/Abs); if none match, falls back to the most recent overall.
// projectPath may be empty, in which case the first match rule is skipped
// and the latest artifact wins outright.
func FindLatest(dir, projectPath string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("loader: read dir: %w", err)
	}

	normalizedProject := normalizePath(projectPath)

	type candidate struct {
		path    string
		modTime int64
		cwd     string
	}
	var candidates []candidate

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), buildSuffix) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		cwd := firstRecordCWD(full)
		candidates = append(candidates, candidate{path: full, modTime: info.ModTime().UnixNano(), cwd: cwd})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("loader: no build artifacts found in %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime > candidates[j].modTime })

	if normalizedProject != "" {
		for _, c := range candidates {
			if normalizePath(c.cwd) == normalizedProject {
				return c.path, nil
			}
		}
	}
	return candidates[0].path, nil
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.Clean(p)
}

func firstRecordCWD(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if scanner.Scan() {
		return gjson.GetBytes(scanner.Bytes(), "cwd").String()
	}
	return ""
}

// Load parses a build artifact's NDJSON records into ordered turns and
// counts the topic Q&A pairs (every user/assistant pair after the preamble).
func Load(path string) (Build, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Build{}, fmt.Errorf("loader: read build: %w", err)
	}

	var turns []Turn
	var cwd string
	seenFirst := false
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parsed := gjson.Parse(line)
		if !seenFirst {
			seenFirst = true
			cwd = parsed.Get("cwd").String()
		}
		role := event.Role(parsed.Get("type").String())
		if role != event.RoleUser && role != event.RoleAssistant {
			continue
		}
		turns = append(turns, Turn{Role: role, Content: extractText(parsed.Get("message"))})
	}

	preambleSeen := false
	topicPairs := 0
	for _, t := range turns {
		if t.Role != event.RoleUser {
			continue
		}
		if !preambleSeen {
			preambleSeen = true
			continue
		}
		topicPairs++
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), buildSuffix)
	return Build{Path: path, Turns: turns, TopicPairs: topicPairs, SessionID: sessionID, Cwd: cwd}, nil
}

func extractText(message gjson.Result) string {
	content := message.Get("content")
	if !content.Exists() {
		return ""
	}
	if content.IsArray() {
		var parts []string
		content.ForEach(func(_, block gjson.Result) bool {
			if t := block.Get("text"); t.Exists() {
				parts = append(parts, t.String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	}
	return content.String()
}

// ForClaude returns the artifact path itself — Claude resumes natively from
// the file rather than needing an injected text block.
func (b Build) ForClaude() string {
	return b.Path
}

const contextHeader = "=== DISTILLED PROJECT CONTEXT ==="
const contextFooter = "=== END CONTEXT ==="

// ContextBlock renders a text block containing only assistant turns, to be
// prepended to the next user prompt for non-Claude platforms.
func (b Build) ContextBlock() string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	sb.WriteString("\n")
	for _, t := range b.Turns {
		if t.Role != event.RoleAssistant {
			continue
		}
		sb.WriteString(t.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString(contextFooter)
	return sb.String()
}
