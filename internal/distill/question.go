package distill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ronaldeddings/unified-agent/internal/assess"
	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// FTSSearcher is the read surface C13 needs from storage's full-text index.
// Implementations must never return an error for "no rows" — only for
// genuine search failures, which C13 treats as an empty result.
type FTSSearcher interface {
	SearchChunks(ctx context.Context, ftsQuery string) ([]ScoredChunk, error)
}

// MemorySearcher is the read surface C13 needs from the defensive memory
// wrapper (C14).
type MemorySearcher interface {
	SearchAsChunks(ctx context.Context, question string, k int) ([]ScoredChunk, error)
}

// QuestionConfig controls the question-driven distiller.
type QuestionConfig struct {
	MemoryK               int
	ReRank                bool
	ReRankBatchSize       int
	WeightQuestion        float64
	WeightExistingConsensus float64
	Budget                BudgetConfig
}

var DefaultQuestionConfig = QuestionConfig{
	MemoryK:                 20,
	ReRank:                  true,
	ReRankBatchSize:         3,
	WeightQuestion:          0.6,
	WeightExistingConsensus: 0.4,
	Budget:                  DefaultBudgetConfig,
}

func (c QuestionConfig) withDefaults() QuestionConfig {
	d := DefaultQuestionConfig
	if c.MemoryK != 0 {
		d.MemoryK = c.MemoryK
	}
	d.ReRank = c.ReRank
	if c.ReRankBatchSize != 0 {
		d.ReRankBatchSize = c.ReRankBatchSize
	}
	if c.WeightQuestion != 0 {
		d.WeightQuestion = c.WeightQuestion
	}
	if c.WeightExistingConsensus != 0 {
		d.WeightExistingConsensus = c.WeightExistingConsensus
	}
	d.Budget = c.Budget.withDefaults()
	return d
}

var nonWordRE = regexp.MustCompile(`[^\w\s]`)

// BuildFTSQuery tokenizes a question per spec §4.8: strip punctuation, drop
// terms of length <= 2, OR-join the remainder. An all-stopword question
// yields an empty query string.
func BuildFTSQuery(question string) string {
	cleaned := nonWordRE.ReplaceAllString(question, " ")
	fields := strings.Fields(cleaned)
	var terms []string
	for _, f := range fields {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return strings.Join(terms, " OR ")
}

type candidate struct {
	chunk             event.Chunk
	existingConsensus float64
	questionScore     float64
	hash              string
}

// Query runs the full question-driven distillation pipeline of spec §4.8.
func Query(ctx context.Context, question string, fts FTSSearcher, mem MemorySearcher, runner assess.ProcessRunner, assessCfg assess.Config, cfg QuestionConfig) event.QueryDistillResult {
	cfg = cfg.withDefaults()

	ftsResults, memResults := dualSearch(ctx, question, fts, mem, cfg)

	candidates := mergeDedupe(ftsResults, memResults)

	if cfg.ReRank {
		rerank(ctx, runner, assessCfg, question, candidates, cfg.ReRankBatchSize)
	}

	scored := weightedScore(candidates, cfg)

	ds := budgetSelectByFinalScore(scored, cfg.Budget.MaxTokens)

	return event.QueryDistillResult{
		DistilledSession: ds,
		Question:         question,
		SearchStats: event.SearchStats{
			FTSMatches:      len(ftsResults),
			MemoryMatches:   len(memResults),
			TotalCandidates: len(candidates),
			AfterReRank:     len(scored),
		},
	}
}

// budgetSelectByFinalScore greedily selects entries (already ranked
// descending by final weighted score) within maxTokens, then re-sorts the
// selection into narrative (startIndex ascending) order. Unlike C12's
// Budget, there is no minimum-score filter here — every merged candidate is
// eligible regardless of score.
func budgetSelectByFinalScore(ranked []ScoredChunk, maxTokens int) event.DistilledSession {
	if maxTokens <= 0 {
		maxTokens = DefaultBudgetConfig.MaxTokens
	}
	var selected []ScoredChunk
	running := 0
	for _, e := range ranked {
		if running+e.Chunk.TokenEstimate <= maxTokens {
			selected = append(selected, e)
			running += e.Chunk.TokenEstimate
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Chunk.StartIndex < selected[j].Chunk.StartIndex
	})
	return assemble(selected, running)
}

func dualSearch(ctx context.Context, question string, fts FTSSearcher, mem MemorySearcher, cfg QuestionConfig) ([]ScoredChunk, []ScoredChunk) {
	var ftsResults, memResults []ScoredChunk
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		query := BuildFTSQuery(question)
		if query == "" {
			return
		}
		res, err := fts.SearchChunks(ctx, query)
		if err != nil {
			logging.WithError(err).Warnf("distill: fts search failed")
			return
		}
		ftsResults = res
	}()
	go func() {
		defer wg.Done()
		res, err := mem.SearchAsChunks(ctx, question, cfg.MemoryK)
		if err != nil {
			logging.WithError(err).Warnf("distill: memory search failed")
			return
		}
		memResults = res
	}()
	wg.Wait()

	return ftsResults, memResults
}

func mergeDedupe(ftsResults, memResults []ScoredChunk) []*candidate {
	byHash := make(map[string]*candidate)
	var order []string

	add := func(sc ScoredChunk) {
		h := contentHash(sc.Chunk)
		if existing, ok := byHash[h]; ok {
			if sc.Consensus > existing.existingConsensus {
				existing.chunk = sc.Chunk
				existing.existingConsensus = sc.Consensus
			}
			return
		}
		byHash[h] = &candidate{chunk: sc.Chunk, existingConsensus: sc.Consensus, hash: h}
		order = append(order, h)
	}

	for _, sc := range ftsResults {
		add(sc)
	}
	for _, sc := range memResults {
		add(sc)
	}

	out := make([]*candidate, 0, len(order))
	for _, h := range order {
		out = append(out, byHash[h])
	}
	return out
}

func contentHash(c event.Chunk) string {
	var b strings.Builder
	for _, ev := range c.Events {
		b.WriteString(ev.Content)
	}
	text := b.String()
	if len(text) > 500 {
		text = text[:500]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func rerank(ctx context.Context, runner assess.ProcessRunner, assessCfg assess.Config, question string, candidates []*candidate, batchSize int) {
	if batchSize <= 0 {
		batchSize = 3
	}
	sem := semaphore.NewWeighted(int64(batchSize))
	var wg sync.WaitGroup

	for _, c := range candidates {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			results := assess.AssessChunkForQuestion(ctx, runner, c.chunk, assessCfg, question)
			if len(results) == 0 {
				// Unscored candidates stay eligible, scored at zero.
				return
			}
			sum := 0
			for _, r := range results {
				sum += r.Score
			}
			c.questionScore = float64(sum) / float64(len(results))
		}()
	}
	wg.Wait()
}

func weightedScore(candidates []*candidate, cfg QuestionConfig) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		normQ := (c.questionScore - 1) / 9
		if c.questionScore == 0 {
			normQ = 0
		}
		normC := c.existingConsensus / 10
		final := cfg.WeightQuestion*normQ + cfg.WeightExistingConsensus*normC
		out = append(out, ScoredChunk{Chunk: c.chunk, Consensus: final * 10})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Consensus > out[j].Consensus })
	return out
}
