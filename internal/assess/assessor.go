package assess

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// ProcessRunner invokes a provider CLI as a subprocess and captures its
// stdout. Implementations must honor ctx cancellation by terminating the
// subprocess. Injected so tests can substitute a fake without spawning real
// CLIs.
type ProcessRunner interface {
	Run(ctx context.Context, command string, args []string) (stdout string, err error)
}

// ExecRunner is the production ProcessRunner, backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, command string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.Discard
	err := cmd.Run()
	return out.String(), err
}

// ProviderConfig describes how to invoke one provider's assessment CLI. The
// rendered prompt is appended as the final positional argument.
type ProviderConfig struct {
	Provider event.Provider
	Command  string
	BaseArgs []string // e.g. non-interactive/bypass-permissions flags
}

// Config controls C9's fan-out behavior. A zero TimeoutMs or MaxConcurrent
// falls back to defaultTuning's value (30000 ms, 3).
type Config struct {
	Providers      []ProviderConfig
	TimeoutMs      int
	RetryOnFailure bool
	MaxConcurrent  int
}

var defaultTuning = Config{TimeoutMs: 30000, MaxConcurrent: 3}

func (c Config) withDefaults() Config {
	if c.TimeoutMs == 0 {
		c.TimeoutMs = defaultTuning.TimeoutMs
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = defaultTuning.MaxConcurrent
	}
	return c
}

// AssessChunk runs the generic rating prompt against every configured
// provider in parallel and returns the successful assessments. Failures are
// dropped silently; never returns an error.
func AssessChunk(ctx context.Context, runner ProcessRunner, chunk event.Chunk, cfg Config) []event.Assessment {
	return assessChunkVariant(ctx, runner, chunk, cfg, false, "")
}

// AssessChunkForQuestion is AssessChunk's question-aware counterpart, used by
// C13's re-rank stage.
func AssessChunkForQuestion(ctx context.Context, runner ProcessRunner, chunk event.Chunk, cfg Config, question string) []event.Assessment {
	return assessChunkVariant(ctx, runner, chunk, cfg, true, question)
}

func assessChunkVariant(ctx context.Context, runner ProcessRunner, chunk event.Chunk, cfg Config, questionAware bool, question string) []event.Assessment {
	cfg = cfg.withDefaults()

	var mu sync.Mutex
	var results []event.Assessment

	g, gctx := errgroup.WithContext(ctx)
	for _, pc := range cfg.Providers {
		pc := pc
		g.Go(func() error {
			a, ok := assessOneProvider(gctx, runner, pc, chunk, cfg, questionAware, question)
			if ok {
				mu.Lock()
				results = append(results, *a)
				mu.Unlock()
			}
			// A provider failure never aborts the batch: always return nil.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func assessOneProvider(ctx context.Context, runner ProcessRunner, pc ProviderConfig, chunk event.Chunk, cfg Config, questionAware bool, question string) (*event.Assessment, bool) {
	prompt := BuildGenericPrompt(chunk)
	if questionAware {
		prompt = BuildQuestionPrompt(chunk, question)
	}

	attempts := 1
	if cfg.RetryOnFailure {
		attempts = 2
	}

	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		out, err := runProviderOnce(ctx, runner, pc, prompt, cfg.TimeoutMs)
		if err != nil {
			logging.WithError(err).Warnf("assess: provider %s attempt %d failed for chunk %s", pc.Provider, attempt+1, chunk.ID)
			continue
		}

		rating, ok := ParseRating(out, questionAware)
		if !ok || rating.OverallScore == nil {
			logging.WithField("provider", pc.Provider).Warnf("assess: unparseable rating for chunk %s (attempt %d)", chunk.ID, attempt+1)
			continue
		}

		return &event.Assessment{
			ID:        uuid.NewString(),
			ChunkID:   chunk.ID,
			Provider:  pc.Provider,
			Score:     *rating.OverallScore,
			Rationale: rating.Rationale,
			Model:     pc.Command,
			LatencyMs: time.Since(start).Milliseconds(),
			CreatedAt: time.Now(),
		}, true
	}

	return nil, false
}

func runProviderOnce(ctx context.Context, runner ProcessRunner, pc ProviderConfig, prompt string, timeoutMs int) (string, error) {
	childCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	args := make([]string, 0, len(pc.BaseArgs)+1)
	args = append(args, pc.BaseArgs...)
	args = append(args, prompt)
	return runner.Run(childCtx, pc.Command, args)
}

// ProgressFunc is invoked once per chunk completion during AssessChunks.
type ProgressFunc func(completed, total int)

// AssessChunks processes chunks in batches of cfg.MaxConcurrent; within each
// chunk, providers still fan out fully in parallel. onProgress may be nil.
func AssessChunks(ctx context.Context, runner ProcessRunner, chunks []event.Chunk, cfg Config, onProgress ProgressFunc) map[string][]event.Assessment {
	cfg = cfg.withDefaults()

	results := make(map[string][]event.Assessment, len(chunks))
	var mu sync.Mutex
	var completed int32
	total := len(chunks)

	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	var wg sync.WaitGroup

	for _, c := range chunks {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			logging.WithError(err).Warnf("assess: batch acquire aborted: %s", fmt.Sprint(err))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			as := assessChunkVariant(ctx, runner, c, cfg, false, "")

			mu.Lock()
			results[c.ID] = as
			mu.Unlock()

			n := atomic.AddInt32(&completed, 1)
			if onProgress != nil {
				onProgress(int(n), total)
			}
		}()
	}
	wg.Wait()

	return results
}
