package memory

import (
	"context"
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/ronaldeddings/unified-agent/internal/chunk"
	"github.com/ronaldeddings/unified-agent/internal/distill"
	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// SourceClaudeMem tags synthetic chunks assembled from memory-service search
// results, per spec §4.8.
const SourceClaudeMem event.Platform = "claudemem"

// SyncQueueStore is the local write-ahead queue surface C14 needs from
// storage (C15).
type SyncQueueStore interface {
	EnqueueSync(ctx context.Context, operation, payload string) (int64, error)
	MarkSynced(ctx context.Context, id int64) error
	PendingSyncEntries(ctx context.Context) ([]event.SyncQueueEntry, error)
}

// Client is the defensive memory wrapper: writes always succeed locally
// first, then best-effort sync to the remote service; reads adapt the
// remote's search surface into chunks.
type Client struct {
	http  *HTTPClient
	store SyncQueueStore
}

func New(http *HTTPClient, store SyncQueueStore) *Client {
	return &Client{http: http, store: store}
}

// Observation is one row persisted to the memory service. Field names and
// JSON tags match spec.md §6's POST /api/sessions/observations body exactly.
type Observation struct {
	SessionID    string `json:"contentSessionId"`
	Cwd          string `json:"cwd"`
	ToolName     string `json:"tool_name"`
	ToolInput    any    `json:"tool_input,omitempty"`
	ToolResponse string `json:"tool_response"`
}

// StoreObservation never blocks or loses work: the local queue write is
// synchronous and always succeeds; the remote push is best-effort.
func (c *Client) StoreObservation(ctx context.Context, obs Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return err
	}

	id, err := c.store.EnqueueSync(ctx, "store_observation", string(payload))
	if err != nil {
		return err
	}

	if err := c.http.StoreObservation(ctx, obs); err != nil {
		logging.WithError(err).Warnf("memory: remote store deferred for queue row %d", id)
		return nil
	}
	if err := c.store.MarkSynced(ctx, id); err != nil {
		logging.WithError(err).Warnf("memory: failed to mark queue row %d synced", id)
	}
	return nil
}

// FlushSyncQueue retries every unsynced row in order. A single row's
// failure never stops the iteration; retrying an already-synced observation
// is safe, the remote store is idempotent per (contentSessionId, cwd,
// tool_response) for this system's replay-sourced observations.
func (c *Client) FlushSyncQueue(ctx context.Context) error {
	pending, err := c.store.PendingSyncEntries(ctx)
	if err != nil {
		return err
	}

	for _, entry := range pending {
		var decoded Observation
		if err := json.Unmarshal([]byte(entry.Payload), &decoded); err != nil {
			logging.WithError(err).Warnf("memory: skipping malformed queue row %d", entry.ID)
			continue
		}
		if err := c.http.StoreObservation(ctx, decoded); err != nil {
			logging.WithError(err).Warnf("memory: flush retry failed for row %d", entry.ID)
			continue
		}
		if err := c.store.MarkSynced(ctx, entry.ID); err != nil {
			logging.WithError(err).Warnf("memory: failed to mark row %d synced after flush", entry.ID)
		}
	}
	return nil
}

// GetSyncQueueSize counts rows still awaiting remote sync.
func (c *Client) GetSyncQueueSize(ctx context.Context) (int, error) {
	pending, err := c.store.PendingSyncEntries(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// SearchAsChunks implements distill.MemorySearcher. It never returns an
// error: any failure in the remote search yields an empty slice so the
// memory side of C13's dual search never blocks the FTS side.
func (c *Client) SearchAsChunks(ctx context.Context, question string, max int) ([]distill.ScoredChunk, error) {
	if max <= 0 {
		max = 20
	}
	texts := c.http.Search(ctx, question, max)

	out := make([]distill.ScoredChunk, 0, len(texts))
	for i, text := range texts {
		similarity := rankSimilarity(i, len(texts))
		out = append(out, distill.ScoredChunk{
			Chunk: event.Chunk{
				ID:             uuid.NewString(),
				SourcePlatform: SourceClaudeMem,
				StartIndex:     i,
				EndIndex:       i,
				ImportanceAvg:  math.Round(similarity * 100),
				TokenEstimate:  chunk.TokenEstimate(text),
				Events:         []event.ParsedEvent{{Role: event.RoleAssistant, Content: text}},
			},
			Consensus: 0,
		})
	}
	return out, nil
}

// rankSimilarity derives a [0,1] similarity purely from result rank: the
// memory service returns results already ordered by relevance but does not
// expose a numeric score, so rank position stands in for it.
func rankSimilarity(rank, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(rank)/float64(total)
}
