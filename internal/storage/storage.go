// Package storage persists chunks, assessments, external session metadata,
// and the defensive-memory sync queue in a single SQLite database, with a
// full-text index over chunk content (C15).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ronaldeddings/unified-agent/internal/distill"
	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// Store is a single SQLite instance, written through one owner goroutine to
// keep concurrent assessment fan-out from contending on the writer; reads
// go directly against the shared connection pool, which SQLite's WAL mode
// permits unrestricted.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOp
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	path     string
}

type writeOp struct {
	exec func(ctx context.Context, db *sql.DB) error
	done chan error
}

const writeQueueBufferSize = 256

// Open creates or attaches to a SQLite database at dbPath, running all
// schema migrations, and starts the single-writer goroutine.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("storage: db path is required")
	}
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: resolve home dir: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}

	s := &Store{
		db:      db,
		writeCh: make(chan writeOp, writeQueueBufferSize),
		stopCh:  make(chan struct{}),
		path:    dbPath,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Close drains pending writes and closes the underlying database.
func (s *Store) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) Path() string { return s.path }

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.done <- op.exec(context.Background(), s.db)
		case <-s.stopCh:
			for {
				select {
				case op := <-s.writeCh:
					op.done <- op.exec(context.Background(), s.db)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) write(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	done := make(chan error, 1)
	op := writeOp{exec: fn, done: done}
	select {
	case s.writeCh <- op:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		source_platform TEXT NOT NULL DEFAULT '',
		start_index INTEGER NOT NULL,
		end_index INTEGER NOT NULL,
		importance_avg REAL NOT NULL DEFAULT 0,
		token_estimate INTEGER NOT NULL DEFAULT 0,
		consensus_score REAL NOT NULL DEFAULT 0,
		events_json TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		score INTEGER NOT NULL,
		rationale TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_chunk ON assessments(chunk_id);

	CREATE TABLE IF NOT EXISTS external_sessions (
		session_id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		last_build_id TEXT NOT NULL DEFAULT '',
		last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS _sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		synced_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS canonical_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tool_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(chunk_id, content)`); err != nil {
		return fmt.Errorf("create chunk_fts: %w", err)
	}

	return migrateSchema(db)
}

// migrateSchema adds columns introduced after the initial table shape,
// tolerating re-application the way the teacher's usage backend does.
func migrateSchema(db *sql.DB) error {
	migrations := []string{
		"importance_score INTEGER NOT NULL DEFAULT 0",
		"chunk_id TEXT NOT NULL DEFAULT ''",
		"consensus_score REAL NOT NULL DEFAULT 0",
	}
	for _, colDef := range migrations {
		_, err := db.Exec("ALTER TABLE canonical_events ADD COLUMN " + colDef)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration failed for [%s]: %w", colDef, err)
		}
		logging.Infof("storage: added column %s to canonical_events", strings.Fields(colDef)[0])
	}
	return nil
}

// UpsertChunk inserts or replaces a chunk row.
func (s *Store) UpsertChunk(ctx context.Context, c event.Chunk, consensus float64) error {
	eventsJSON, err := json.Marshal(c.Events)
	if err != nil {
		return fmt.Errorf("storage: marshal events: %w", err)
	}
	return s.write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO chunks (id, session_id, source_platform, start_index, end_index, importance_avg, token_estimate, consensus_score, events_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				session_id=excluded.session_id, source_platform=excluded.source_platform,
				start_index=excluded.start_index, end_index=excluded.end_index,
				importance_avg=excluded.importance_avg, token_estimate=excluded.token_estimate,
				consensus_score=excluded.consensus_score, events_json=excluded.events_json
		`, c.ID, c.SessionID, string(c.SourcePlatform), c.StartIndex, c.EndIndex, c.ImportanceAvg, c.TokenEstimate, consensus, string(eventsJSON))
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `DELETE FROM chunk_fts WHERE chunk_id = ?`, c.ID)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `INSERT INTO chunk_fts (chunk_id, content) VALUES (?, ?)`, c.ID, chunkText(c))
		return err
	})
}

func chunkText(c event.Chunk) string {
	var b strings.Builder
	for i, ev := range c.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ev.Content)
	}
	return b.String()
}

// InsertAssessment records one provider's rating of one chunk.
func (s *Store) InsertAssessment(ctx context.Context, a event.Assessment) error {
	return s.write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO assessments (id, chunk_id, provider, score, rationale, model, tokens_used, latency_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.ChunkID, string(a.Provider), a.Score, a.Rationale, a.Model, a.TokensUsed, a.LatencyMs, a.CreatedAt)
		return err
	})
}

// UpsertExternalSession records the latest-seen state of a scanned session.
func (s *Store) UpsertExternalSession(ctx context.Context, sessionID string, platform event.Platform, filePath, lastBuildID string) error {
	return s.write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO external_sessions (session_id, platform, file_path, last_build_id, last_seen_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(session_id) DO UPDATE SET
				platform=excluded.platform, file_path=excluded.file_path,
				last_build_id=excluded.last_build_id, last_seen_at=CURRENT_TIMESTAMP
		`, sessionID, string(platform), filePath, lastBuildID)
		return err
	})
}

// EnqueueSync appends a row to the local write-ahead sync queue (C14).
func (s *Store) EnqueueSync(ctx context.Context, operation, payload string) (int64, error) {
	var id int64
	err := s.write(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `INSERT INTO _sync_queue (operation, payload) VALUES (?, ?)`, operation, payload)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// MarkSynced sets syncedAt=now() for a sync queue row.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	return s.write(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `UPDATE _sync_queue SET synced_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
		return err
	})
}

// PendingSyncEntries returns unsynced queue rows ordered by id ascending.
func (s *Store) PendingSyncEntries(ctx context.Context) ([]event.SyncQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, operation, payload, created_at FROM _sync_queue WHERE synced_at IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.SyncQueueEntry
	for rows.Next() {
		var e event.SyncQueueEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchChunks implements distill.FTSSearcher: it queries chunk_fts with an
// already-OR-joined token string and returns scored chunks drawn from the
// joined chunks row.
func (s *Store) SearchChunks(ctx context.Context, ftsQuery string) ([]distill.ScoredChunk, error) {
	if strings.TrimSpace(ftsQuery) == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.session_id, c.source_platform, c.start_index, c.end_index, c.importance_avg, c.token_estimate, c.consensus_score, c.events_json
		FROM chunk_fts f
		JOIN chunks c ON c.id = f.chunk_id
		WHERE chunk_fts MATCH ?
	`, ftsQuery)
	if err != nil {
		return nil, fmt.Errorf("storage: fts query: %w", err)
	}
	defer rows.Close()

	var out []distill.ScoredChunk
	for rows.Next() {
		var c event.Chunk
		var platform, eventsJSON string
		var consensus float64
		if err := rows.Scan(&c.ID, &c.SessionID, &platform, &c.StartIndex, &c.EndIndex, &c.ImportanceAvg, &c.TokenEstimate, &consensus, &eventsJSON); err != nil {
			return nil, err
		}
		c.SourcePlatform = event.Platform(platform)
		if err := json.Unmarshal([]byte(eventsJSON), &c.Events); err != nil {
			logging.WithError(err).Warnf("storage: failed to decode events for chunk %s", c.ID)
		}
		out = append(out, distill.ScoredChunk{Chunk: c, Consensus: consensus})
	}
	return out, rows.Err()
}

// LatestBuildForSession returns the most recently seen build id recorded for
// a session, or "" if none is known.
func (s *Store) LatestBuildForSession(ctx context.Context, sessionID string) (string, error) {
	var buildID string
	err := s.db.QueryRowContext(ctx, `SELECT last_build_id FROM external_sessions WHERE session_id = ?`, sessionID).Scan(&buildID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return buildID, err
}
