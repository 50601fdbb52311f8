package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corvidworks/pregel"
	_ "modernc.org/sqlite"
)

// SQLiteSaver is a single-file pregel.Saver backed by modernc.org/sqlite.
// It is the recommended Saver for local development, single-process
// deployments, and prototyping before a team moves to a distributed
// backend (SQLiteSaver's schema and MySQLSaver's are intentionally
// parallel so that migration is a data copy, not a rewrite).
//
// WAL mode is enabled, but the pool is capped at one open connection, so
// reads and writes through one SQLiteSaver serialize on it.
type SQLiteSaver struct {
	db *sql.DB
}

// NewSQLiteSaver opens (creating if absent) the database at path. Use
// ":memory:" for an ephemeral database, useful in tests that want SQL
// semantics without a file on disk.
func NewSQLiteSaver(path string) (*SQLiteSaver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persist: %s: %w", pragma, err)
		}
	}

	s := &SQLiteSaver{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSaver) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			namespace TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_id TEXT,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, namespace, checkpoint_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread
			ON checkpoints(thread_id, namespace, created_at)`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			checkpoint_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_writes_checkpoint
			ON pending_writes(checkpoint_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("persist: creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSaver) Close() error {
	return s.db.Close()
}

func (s *SQLiteSaver) Put(ctx context.Context, config pregel.CheckpointConfig, cp pregel.Checkpoint, parentID string) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("persist: marshaling checkpoint: %w", err)
	}
	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, namespace, checkpoint_id, parent_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, namespace, checkpoint_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, config.ThreadID, config.Namespace, cp.ID, parent, payload, time.Now())
	if err != nil {
		return fmt.Errorf("persist: writing checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteSaver) PutWrites(ctx context.Context, config pregel.CheckpointConfig, writes []pregel.PendingWrite) error {
	for _, w := range writes {
		value, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("persist: marshaling pending write: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO pending_writes (checkpoint_id, task_id, channel, value) VALUES (?, ?, ?, ?)
		`, config.ID, w.TaskID, w.Channel, value); err != nil {
			return fmt.Errorf("persist: writing pending write: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSaver) GetTuple(ctx context.Context, config pregel.CheckpointConfig) (pregel.CheckpointTuple, error) {
	var (
		row      *sql.Row
		checkpointID string
	)
	if config.ID != "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT checkpoint_id, parent_id, payload FROM checkpoints
			WHERE thread_id = ? AND namespace = ? AND checkpoint_id = ?
		`, config.ThreadID, config.Namespace, config.ID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT checkpoint_id, parent_id, payload FROM checkpoints
			WHERE thread_id = ? AND namespace = ?
			ORDER BY created_at DESC LIMIT 1
		`, config.ThreadID, config.Namespace)
	}

	var parent sql.NullString
	var payload []byte
	if err := row.Scan(&checkpointID, &parent, &payload); err != nil {
		if err == sql.ErrNoRows {
			return pregel.CheckpointTuple{}, pregel.ErrCheckpointNotFound
		}
		return pregel.CheckpointTuple{}, fmt.Errorf("persist: reading checkpoint: %w", err)
	}

	var cp pregel.Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return pregel.CheckpointTuple{}, fmt.Errorf("persist: decoding checkpoint: %w", err)
	}

	tuple := pregel.CheckpointTuple{
		Config:     pregel.CheckpointConfig{ThreadID: config.ThreadID, Namespace: config.Namespace, ID: checkpointID},
		Checkpoint: cp,
	}
	if parent.Valid {
		tuple.ParentConfig = pregel.CheckpointConfig{ThreadID: config.ThreadID, Namespace: config.Namespace, ID: parent.String}
	}

	writes, err := s.loadPendingWrites(ctx, checkpointID)
	if err != nil {
		return pregel.CheckpointTuple{}, err
	}
	tuple.PendingWrites = writes
	return tuple, nil
}

func (s *SQLiteSaver) loadPendingWrites(ctx context.Context, checkpointID string) ([]pregel.PendingWrite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, channel, value FROM pending_writes WHERE checkpoint_id = ?
	`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("persist: reading pending writes: %w", err)
	}
	defer rows.Close()

	var out []pregel.PendingWrite
	for rows.Next() {
		var w pregel.PendingWrite
		var value []byte
		if err := rows.Scan(&w.TaskID, &w.Channel, &value); err != nil {
			return nil, fmt.Errorf("persist: scanning pending write: %w", err)
		}
		if err := json.Unmarshal(value, &w.Value); err != nil {
			return nil, fmt.Errorf("persist: decoding pending write: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteSaver) List(ctx context.Context, threadID, namespace string, limit int) ([]pregel.CheckpointTuple, error) {
	query := `
		SELECT checkpoint_id, parent_id, payload FROM checkpoints
		WHERE thread_id = ? AND namespace = ?
		ORDER BY created_at DESC
	`
	args := []any{threadID, namespace}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("persist: listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []pregel.CheckpointTuple
	for rows.Next() {
		var checkpointID string
		var parent sql.NullString
		var payload []byte
		if err := rows.Scan(&checkpointID, &parent, &payload); err != nil {
			return nil, fmt.Errorf("persist: scanning checkpoint: %w", err)
		}
		var cp pregel.Checkpoint
		if err := json.Unmarshal(payload, &cp); err != nil {
			return nil, fmt.Errorf("persist: decoding checkpoint: %w", err)
		}
		tuple := pregel.CheckpointTuple{
			Config:     pregel.CheckpointConfig{ThreadID: threadID, Namespace: namespace, ID: checkpointID},
			Checkpoint: cp,
		}
		if parent.Valid {
			tuple.ParentConfig = pregel.CheckpointConfig{ThreadID: threadID, Namespace: namespace, ID: parent.String}
		}
		out = append(out, tuple)
	}
	return out, rows.Err()
}

func (s *SQLiteSaver) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pending_writes WHERE checkpoint_id IN (
			SELECT checkpoint_id FROM checkpoints WHERE thread_id = ?
		)
	`, threadID); err != nil {
		return fmt.Errorf("persist: deleting pending writes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("persist: deleting checkpoints: %w", err)
	}
	return tx.Commit()
}
