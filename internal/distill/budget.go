// Package distill selects a token-bounded subset of assessed chunks for a
// final distilled session, either by consensus/recency ranking (C12) or by
// relevance to a user question (C13).
package distill

import (
	"sort"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// SortMode selects how C12 ranks candidate chunks before greedy selection.
type SortMode string

const (
	SortConsensus     SortMode = "consensus"
	SortChronological SortMode = "chronological"
	SortHybrid        SortMode = "hybrid"
)

// BudgetConfig controls the token-budget distiller.
type BudgetConfig struct {
	MaxTokens             int
	MinConsensusScore     float64
	SortBy                SortMode
	HybridConsensusWeight float64
	HybridRecencyWeight   float64
}

var DefaultBudgetConfig = BudgetConfig{
	MaxTokens:             80000,
	MinConsensusScore:     5.0,
	SortBy:                SortConsensus,
	HybridConsensusWeight: 0.7,
	HybridRecencyWeight:   0.3,
}

func (c BudgetConfig) withDefaults() BudgetConfig {
	d := DefaultBudgetConfig
	if c.MaxTokens != 0 {
		d.MaxTokens = c.MaxTokens
	}
	if c.MinConsensusScore != 0 {
		d.MinConsensusScore = c.MinConsensusScore
	}
	if c.SortBy != "" {
		d.SortBy = c.SortBy
	}
	if c.HybridConsensusWeight != 0 {
		d.HybridConsensusWeight = c.HybridConsensusWeight
	}
	if c.HybridRecencyWeight != 0 {
		d.HybridRecencyWeight = c.HybridRecencyWeight
	}
	return d
}

// ScoredChunk pairs a chunk with its consensus score, the unit C12 and C13
// both operate on.
type ScoredChunk struct {
	Chunk     event.Chunk
	Consensus float64
}

// BudgetStats reports the drop counts of a token-budget distillation run.
type BudgetStats struct {
	DroppedByConsensus int
	DroppedByBudget    int
}

// Budget selects a token-bounded, narrative-ordered subset of entries per
// spec §4.7.
func Budget(entries []ScoredChunk, cfg BudgetConfig) (event.DistilledSession, BudgetStats) {
	cfg = cfg.withDefaults()
	var stats BudgetStats

	survivors := make([]ScoredChunk, 0, len(entries))
	for _, e := range entries {
		if e.Consensus < cfg.MinConsensusScore {
			stats.DroppedByConsensus++
			continue
		}
		survivors = append(survivors, e)
	}

	ranked := rank(survivors, cfg)

	var selected []ScoredChunk
	running := 0
	for _, e := range ranked {
		if running+e.Chunk.TokenEstimate <= cfg.MaxTokens {
			selected = append(selected, e)
			running += e.Chunk.TokenEstimate
		} else {
			stats.DroppedByBudget++
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Chunk.StartIndex < selected[j].Chunk.StartIndex
	})

	ds := assemble(selected, running)
	ds.DroppedChunks = stats.DroppedByConsensus + stats.DroppedByBudget
	return ds, stats
}

func rank(entries []ScoredChunk, cfg BudgetConfig) []ScoredChunk {
	ranked := make([]ScoredChunk, len(entries))
	copy(ranked, entries)

	switch cfg.SortBy {
	case SortChronological:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Chunk.StartIndex > ranked[j].Chunk.StartIndex
		})
	case SortHybrid:
		scores := hybridScores(ranked, cfg)
		sort.SliceStable(ranked, func(i, j int) bool {
			return scores[ranked[i].Chunk.ID] > scores[ranked[j].Chunk.ID]
		})
	default: // SortConsensus
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Consensus > ranked[j].Consensus
		})
	}
	return ranked
}

func hybridScores(entries []ScoredChunk, cfg BudgetConfig) map[string]float64 {
	scores := make(map[string]float64, len(entries))
	if len(entries) == 0 {
		return scores
	}

	minC, maxC := entries[0].Consensus, entries[0].Consensus
	minI, maxI := entries[0].Chunk.StartIndex, entries[0].Chunk.StartIndex
	for _, e := range entries {
		if e.Consensus < minC {
			minC = e.Consensus
		}
		if e.Consensus > maxC {
			maxC = e.Consensus
		}
		if e.Chunk.StartIndex < minI {
			minI = e.Chunk.StartIndex
		}
		if e.Chunk.StartIndex > maxI {
			maxI = e.Chunk.StartIndex
		}
	}

	for _, e := range entries {
		normC := normalize(e.Consensus, minC, maxC)
		normR := normalize(float64(e.Chunk.StartIndex), float64(minI), float64(maxI))
		scores[e.Chunk.ID] = cfg.HybridConsensusWeight*normC + cfg.HybridRecencyWeight*normR
	}
	return scores
}

// normalize maps v into [0,1] given the population's [lo,hi] range. A
// degenerate range (lo==hi, the whole population ties) maps everything to 0.
func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func assemble(selected []ScoredChunk, totalTokens int) event.DistilledSession {
	sessionIDs := map[string]struct{}{}
	platforms := map[event.Platform]struct{}{}
	chunks := make([]event.Chunk, 0, len(selected))

	for _, e := range selected {
		chunks = append(chunks, e.Chunk)
		if e.Chunk.SessionID != "" {
			sessionIDs[e.Chunk.SessionID] = struct{}{}
		}
		if e.Chunk.SourcePlatform != "" {
			platforms[e.Chunk.SourcePlatform] = struct{}{}
		}
	}

	ds := event.DistilledSession{
		Chunks:      chunks,
		TotalTokens: totalTokens,
		DistilledAt: time.Now(),
	}
	for id := range sessionIDs {
		ds.SourceSessionIDs = append(ds.SourceSessionIDs, id)
	}
	sort.Strings(ds.SourceSessionIDs)
	for p := range platforms {
		ds.SourcePlatforms = append(ds.SourcePlatforms, p)
	}
	sort.Slice(ds.SourcePlatforms, func(i, j int) bool { return ds.SourcePlatforms[i] < ds.SourcePlatforms[j] })

	return ds
}
