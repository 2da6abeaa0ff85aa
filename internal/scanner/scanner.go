// Package scanner enumerates on-disk session files per platform,
// respecting the default directory layout of spec §6.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// Filter narrows a scan. A zero-value Filter matches everything.
type Filter struct {
	Platform event.Platform // empty = all platforms
	Since    int64          // unix seconds; 0 = no lower bound on ModifiedAt
}

// Root describes one platform's default session directory and the glob
// used to find its session files under it.
type Root struct {
	Platform event.Platform
	Dir      string
	Glob     string // only its extension is used: every file under Dir with that extension is found, recursively
}

// DefaultRoots returns the scanner's built-in search roots, matching
// spec §6 exactly (expanding "~" to the user's home directory).
func DefaultRoots() []Root {
	home, _ := os.UserHomeDir()
	return []Root{
		{Platform: event.PlatformClaude, Dir: filepath.Join(home, ".claude", "projects"), Glob: "*/**/*.jsonl"},
		{Platform: event.PlatformCodex, Dir: filepath.Join(home, ".codex", "sessions"), Glob: "*.jsonl"},
		{Platform: event.PlatformGemini, Dir: filepath.Join(home, ".gemini", "sessions"), Glob: "*.json"},
		{Platform: "unified-agent", Dir: filepath.Join(home, ".unified-agent", "sessions"), Glob: "*.jsonl"},
	}
}

// Scanner enumerates session files across a set of roots.
type Scanner struct {
	roots []Root
}

// New builds a Scanner over the given roots (use DefaultRoots() for the
// production default).
func New(roots []Root) *Scanner {
	return &Scanner{roots: roots}
}

// Scan walks all configured roots, applying filter, and returns results
// sorted by ModifiedAt descending.
func (s *Scanner) Scan(filter Filter) ([]event.ScannedSession, error) {
	var out []event.ScannedSession
	for _, root := range s.roots {
		if filter.Platform != "" && filter.Platform != root.Platform {
			continue
		}
		found, err := s.scanRoot(root)
		if err != nil {
			logging.WithError(err).Warnf("scanner: skipping root %s", root.Dir)
			continue
		}
		for _, f := range found {
			if filter.Since > 0 && f.ModifiedAt.Unix() < filter.Since {
				continue
			}
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

func (s *Scanner) scanRoot(root Root) ([]event.ScannedSession, error) {
	var out []event.ScannedSession

	suffix := filepath.Ext(root.Glob)
	err := filepath.Walk(root.Dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, never abort the whole walk.
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), suffix) {
			return nil
		}
		out = append(out, event.ScannedSession{
			Platform:   root.Platform,
			FilePath:   path,
			FileSize:   info.Size(),
			ModifiedAt: info.ModTime(),
			SessionID:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return out, nil
	}
	return out, err
}
