// Package app wires every internal package into the operations the CLI
// shell (C27) exposes: scan, run, build, ask, query, report, assess,
// status, watch, seed, load, unload. It owns no business logic of its own
// beyond orchestration — each step delegates to the package that already
// implements it.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ronaldeddings/unified-agent/internal/archive"
	"github.com/ronaldeddings/unified-agent/internal/assess"
	"github.com/ronaldeddings/unified-agent/internal/chunk"
	"github.com/ronaldeddings/unified-agent/internal/config"
	"github.com/ronaldeddings/unified-agent/internal/distill"
	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/journal"
	"github.com/ronaldeddings/unified-agent/internal/loader"
	"github.com/ronaldeddings/unified-agent/internal/logging"
	"github.com/ronaldeddings/unified-agent/internal/memory"
	"github.com/ronaldeddings/unified-agent/internal/output"
	"github.com/ronaldeddings/unified-agent/internal/parser"
	"github.com/ronaldeddings/unified-agent/internal/registry"
	"github.com/ronaldeddings/unified-agent/internal/relay"
	"github.com/ronaldeddings/unified-agent/internal/scanner"
	"github.com/ronaldeddings/unified-agent/internal/statusapi"
	"github.com/ronaldeddings/unified-agent/internal/storage"
	"github.com/ronaldeddings/unified-agent/internal/synth"
	"github.com/ronaldeddings/unified-agent/internal/watch"
)

// App holds the long-lived collaborators one CLI invocation needs.
type App struct {
	Config  *config.Config
	Store   *storage.Store
	Memory  *memory.Client
	Journal *journal.Recorder
	Archive *archive.Publisher
	Scanner *scanner.Scanner
	Registry *registry.Registry
	Queue   *assess.Queue

	mu        sync.Mutex
	lastBuild event.DistilledSession
	haveBuild bool
}

// New assembles an App from a resolved Config. The storage path and build
// output dir are expected to already be expanded (config.Bootstrap does
// this).
func New(cfg *config.Config) (*App, error) {
	store, err := storage.Open(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}

	httpClient := memory.NewHTTPClient(cfg.MemoryServiceURL)
	mem := memory.New(httpClient, store)

	pub, err := archive.New(archive.Config{
		Bucket:    cfg.ArchiveBucket,
		Endpoint:  cfg.ArchiveEndpoint,
		AccessKey: cfg.ArchiveAccessKey,
		SecretKey: cfg.ArchiveSecretKey,
		UseSSL:    cfg.ArchiveUseSSL,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: archive publisher: %w", err)
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Memory:   mem,
		Journal:  journal.NewRecorder(filepath.Dir(cfg.StoragePath)),
		Archive:  pub,
		Scanner:  scanner.New(scanner.DefaultRoots()),
		Registry: registry.New(),
		Queue:    assess.NewQueue(assess.ExecRunner{}, assess.Config{Providers: cfg.AssessProviders(), TimeoutMs: cfg.Assess.TimeoutMs, RetryOnFailure: cfg.Assess.RetryOnFailure, MaxConcurrent: cfg.Assess.MaxConcurrent}, 0),
	}, nil
}

// Close releases every long-lived resource.
func (a *App) Close() error {
	a.Journal.Close()
	return a.Store.Close()
}

// Scan enumerates on-disk session files across the default platform roots.
func (a *App) Scan(filter scanner.Filter) ([]event.ScannedSession, error) {
	return a.Scanner.Scan(filter)
}

// ParseAndChunk loads one session file end to end: parse → chunk. Scores
// default to a flat baseline (the real-time hook populates per-event scores
// as sessions are actively observed; a one-shot `run`/`build` pass over an
// already-complete file has no live hook to consult).
func (a *App) ParseAndChunk(ctx context.Context, sessionID, filePath string) ([]event.Chunk, error) {
	p, err := a.Registry.ResolveByPath(filePath)
	if err != nil {
		return nil, fmt.Errorf("app: resolve parser for %s: %w", filePath, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("app: open %s: %w", filePath, err)
	}
	defer f.Close()

	events, err := parser.ParseAll(p, f)
	if err != nil {
		return nil, fmt.Errorf("app: parse %s: %w", filePath, err)
	}

	threshold := a.Config.Chunk.MinImportanceThreshold
	if threshold == 0 {
		threshold = chunk.DefaultConfig.MinImportanceThreshold
	}
	scores := make([]int, len(events))
	for i := range scores {
		scores[i] = threshold // neutral baseline when no live score exists
	}
	return chunk.Build(sessionID, events, scores, a.Config.Chunk), nil
}

// Assess runs every configured provider CLI against each chunk, persists
// the resulting assessments and consensus scores, and reports progress.
func (a *App) Assess(ctx context.Context, chunks []event.Chunk, onProgress assess.ProgressFunc) (map[string][]event.Assessment, error) {
	assessCfg := assess.Config{
		Providers:      a.Config.AssessProviders(),
		TimeoutMs:      a.Config.Assess.TimeoutMs,
		RetryOnFailure: a.Config.Assess.RetryOnFailure,
		MaxConcurrent:  a.Config.Assess.MaxConcurrent,
	}
	results := assess.AssessChunks(ctx, assess.ExecRunner{}, chunks, assessCfg, onProgress)

	for _, c := range chunks {
		as := results[c.ID]
		consensus := assess.ComputeConsensus(as, a.Config.Consensus)
		if err := a.Store.UpsertChunk(ctx, c, consensus); err != nil {
			logging.WithError(err).Warnf("app: persist chunk %s failed", c.ID)
			continue
		}
		for _, a2 := range as {
			if err := a.Store.InsertAssessment(ctx, a2); err != nil {
				logging.WithError(err).Warnf("app: persist assessment for chunk %s failed", c.ID)
			}
		}
	}
	return results, nil
}

// scoredFromAssessments converts persisted assessments into distill's
// ranking input.
func scoredFromAssessments(chunks []event.Chunk, results map[string][]event.Assessment, cfg assess.ConsensusConfig) []distill.ScoredChunk {
	out := make([]distill.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, distill.ScoredChunk{Chunk: c, Consensus: assess.ComputeConsensus(results[c.ID], cfg)})
	}
	return out
}

// Run performs a full one-shot pipeline pass over a single session file:
// parse, chunk, assess, budget-select, and record the build as the app's
// last build (for /report and the status API).
func (a *App) Run(ctx context.Context, sessionID, filePath string, onProgress assess.ProgressFunc) (event.DistilledSession, error) {
	chunks, err := a.ParseAndChunk(ctx, sessionID, filePath)
	if err != nil {
		return event.DistilledSession{}, err
	}
	if len(chunks) == 0 {
		return event.DistilledSession{}, fmt.Errorf("app: no chunks produced from %s", filePath)
	}

	results, err := a.Assess(ctx, chunks, onProgress)
	if err != nil {
		return event.DistilledSession{}, err
	}

	scored := scoredFromAssessments(chunks, results, a.Config.Consensus)
	ds, _ := distill.Budget(scored, a.Config.Budget)

	a.setLastBuild(ds)
	return ds, nil
}

// Build renders a distilled session into format at path, synthesizing
// narrative topics first (Claude-conversation format only consumes them;
// the rest ignore turns per C17's contract).
func (a *App) Build(ds event.DistilledSession, format output.Format, path string, opts output.Options) (string, error) {
	turns := synth.Synthesize(ds.Chunks)
	writtenPath, err := output.Generate(ds, turns, format, path, opts)
	if err != nil {
		return "", err
	}
	if a.Archive.Enabled() {
		go func() {
			if err := a.Archive.Publish(context.Background(), writtenPath); err != nil {
				logging.WithError(err).Debugf("app: archive publish of %s failed", writtenPath)
			}
		}()
	}
	return writtenPath, nil
}

// Ask runs the question-driven distiller (C13) against storage's
// full-text index and the memory service, re-ranking candidates by
// relevance to question.
func (a *App) Ask(ctx context.Context, question string) event.QueryDistillResult {
	assessCfg := assess.Config{
		Providers:      a.Config.AssessProviders(),
		TimeoutMs:      a.Config.Assess.TimeoutMs,
		RetryOnFailure: a.Config.Assess.RetryOnFailure,
		MaxConcurrent:  a.Config.Assess.MaxConcurrent,
	}
	result := distill.Query(ctx, question, a.Store, a.Memory, assess.ExecRunner{}, assessCfg, distill.DefaultQuestionConfig)
	a.setLastBuild(result.DistilledSession)
	return result
}

// Query is an alias for Ask exposing the same question-driven search under
// the CLI's separate `query` verb (spec §6 lists both `ask` and `query` as
// distinct commands operating on the same underlying capability: `ask`
// favors a conversational single-shot answer, `query` is meant for
// scripting against raw QueryDistillResult JSON).
func (a *App) Query(ctx context.Context, question string) event.QueryDistillResult {
	return a.Ask(ctx, question)
}

// Report returns the most recently produced build, if any.
func (a *App) Report() (event.DistilledSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastBuild, a.haveBuild
}

func (a *App) setLastBuild(ds event.DistilledSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastBuild = ds
	a.haveBuild = true
}

// StatusSources adapts the app's live state into statusapi.Sources.
func (a *App) StatusSources() statusapi.Sources {
	return statusapi.Sources{
		QueueCounters: func() statusapi.QueueCounters {
			c := a.Queue.Counters()
			return statusapi.QueueCounters{Active: c.Active, Pending: c.Pending, Completed: c.Completed, Failed: c.Failed}
		},
		SyncQueueSize: a.Memory.GetSyncQueueSize,
		LastBuild:     a.Report,
	}
}

// Watch starts C19's poll loop over the app's configured scan directories,
// passing every newly-discovered session path to onNew and fanning it out to
// the relay if one is configured; discovered paths are not journaled. It
// returns the Watcher so callers can Stop it.
func (a *App) Watch(onNew watch.OnNewPath) *watch.Watcher {
	w := watch.New(a.Config.ScanDirs, a.Config.PollInterval(), onNew, func(dir string, err error) {
		logging.WithError(err).Warnf("app: scan of %s failed", dir)
	})
	if a.Config.RelayURL != "" {
		w.SetRelay(relay.NewWebSocketRelay(a.Config.RelayURL))
	}
	w.Start()
	return w
}

// Seed stores a distillation artifact's assistant turns as memory-service
// observations (queued locally first by the memory wrapper), for bootstrap
// scenarios where an existing build should be indexed without being
// re-derived from raw session files.
func (a *App) Seed(ctx context.Context, buildPath string) (loader.Build, error) {
	build, err := loader.Load(buildPath)
	if err != nil {
		return loader.Build{}, err
	}
	for _, t := range build.Turns {
		if t.Role != event.RoleAssistant {
			continue
		}
		obs := memory.Observation{
			SessionID:    build.SessionID,
			Cwd:          build.Cwd,
			ToolResponse: t.Content,
		}
		if err := a.Memory.StoreObservation(ctx, obs); err != nil {
			logging.WithError(err).Debugf("app: seed observation store failed")
		}
	}
	return build, nil
}

// Load finds and returns the most recent build for a project directory,
// ready for injection into a fresh coding-assistant session (C18).
func (a *App) Load(buildDir, projectPath string) (loader.Build, error) {
	path, err := loader.FindLatest(buildDir, projectPath)
	if err != nil {
		return loader.Build{}, err
	}
	return loader.Load(path)
}

// Unload clears the app's in-memory last-build pointer, so /report and the
// status surface stop referencing a stale build until the next run/build.
func (a *App) Unload() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastBuild = event.DistilledSession{}
	a.haveBuild = false
}

// StatusServer builds (but does not start) the introspection API (C26) over
// this app's live state.
func (a *App) StatusServer() *statusapi.Server {
	return statusapi.New(a.Config.StatusAddr, a.StatusSources())
}

