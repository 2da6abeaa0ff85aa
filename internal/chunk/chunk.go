// Package chunk groups scored events into bounded assessment units with
// overlap, per spec §4.3.
package chunk

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tiktoken-go/tokenizer"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Config controls chunking thresholds. Zero-value fields fall back to
// DefaultConfig's values.
type Config struct {
	MinImportanceThreshold int
	MaxEventsPerChunk      int
	MaxTokensPerChunk      int
	OverlapEvents          int
}

var DefaultConfig = Config{
	MinImportanceThreshold: 30,
	MaxEventsPerChunk:      20,
	MaxTokensPerChunk:      4000,
	OverlapEvents:          2,
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.MinImportanceThreshold != 0 {
		d.MinImportanceThreshold = c.MinImportanceThreshold
	}
	if c.MaxEventsPerChunk != 0 {
		d.MaxEventsPerChunk = c.MaxEventsPerChunk
	}
	if c.MaxTokensPerChunk != 0 {
		d.MaxTokensPerChunk = c.MaxTokensPerChunk
	}
	if c.OverlapEvents != 0 {
		d.OverlapEvents = c.OverlapEvents
	}
	return d
}

var (
	tokEncOnce sync.Once
	tokEnc     tokenizer.Codec
)

// tokenEncoder lazily builds a cl100k_base encoder once per process. None of
// the assessed CLIs are OpenAI models, so this is an estimate, not an exact
// count — but it tracks real subword boundaries far better than a fixed
// chars-per-token ratio, and is the same encoder family every provider CLI's
// own reported usage tends to approximate.
func tokenEncoder() tokenizer.Codec {
	tokEncOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			tokEnc = enc
		}
	})
	return tokEnc
}

// TokenEstimate is the token-count estimate used consistently across
// chunking and distillation. Falls back to ceil(len(content)/4) if the
// tokenizer failed to initialize.
func TokenEstimate(content string) int {
	if enc := tokenEncoder(); enc != nil {
		if ids, _, err := enc.Encode(content); err == nil {
			return len(ids)
		}
	}
	return (len(content) + 3) / 4
}

// scoredEvent pairs a ParsedEvent with its real-time importance score and
// its index in the original (unfiltered) stream.
type scoredEvent struct {
	ev    event.ParsedEvent
	score int
	index int
}

// Build chunks a sequence of (event, score) pairs for sessionID into
// bounded chunks. events and scores must be the same length and in
// original stream order; indices in the returned chunks refer to positions
// in this original sequence.
func Build(sessionID string, events []event.ParsedEvent, scores []int, cfg Config) []event.Chunk {
	cfg = cfg.withDefaults()

	survivors := make([]scoredEvent, 0, len(events))
	for i, ev := range events {
		if scores[i] < cfg.MinImportanceThreshold {
			continue
		}
		survivors = append(survivors, scoredEvent{ev: ev, score: scores[i], index: i})
	}
	if len(survivors) == 0 {
		return nil
	}

	var chunks []event.Chunk
	var window []scoredEvent
	windowTokens := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(sessionID, window))
	}

	seedOverlap := func(closed []scoredEvent) []scoredEvent {
		n := cfg.OverlapEvents
		if n > len(closed) {
			n = len(closed)
		}
		if n <= 0 {
			return nil
		}
		seed := make([]scoredEvent, n)
		copy(seed, closed[len(closed)-n:])
		return seed
	}

	for _, se := range survivors {
		tokens := TokenEstimate(se.ev.Content)

		// A single event alone may exceed the per-chunk budget; per spec
		// it then sits alone in its own chunk rather than blocking forever.
		if len(window) > 0 && windowTokens+tokens > cfg.MaxTokensPerChunk {
			closed := window
			flush()
			window = seedOverlap(closed)
			windowTokens = 0
			for _, w := range window {
				windowTokens += TokenEstimate(w.ev.Content)
			}
			// Drop overlap events from the front until the incoming event
			// fits, so an oversize event is not joined by its predecessors.
			for len(window) > 0 && windowTokens+tokens > cfg.MaxTokensPerChunk {
				windowTokens -= TokenEstimate(window[0].ev.Content)
				window = window[1:]
			}
		}

		window = append(window, se)
		windowTokens += tokens

		if len(window) >= cfg.MaxEventsPerChunk {
			closed := window
			flush()
			window = seedOverlap(closed)
			windowTokens = 0
			for _, w := range window {
				windowTokens += TokenEstimate(w.ev.Content)
			}
		}
	}

	flush()
	return chunks
}

func buildChunk(sessionID string, window []scoredEvent) event.Chunk {
	events := make([]event.ParsedEvent, len(window))
	sum := 0
	tokens := 0
	for i, w := range window {
		events[i] = w.ev
		sum += w.score
		tokens += TokenEstimate(w.ev.Content)
	}
	return event.Chunk{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Events:        events,
		StartIndex:    window[0].index,
		EndIndex:      window[len(window)-1].index,
		ImportanceAvg: float64(sum) / float64(len(window)),
		TokenEstimate: tokens,
	}
}
