package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corvidworks/pregel"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLSaver is a pregel.Saver backed by MySQL/MariaDB, for workflows that
// need a durable store shared across multiple worker processes.
//
// The DSN format follows github.com/go-sql-driver/mysql, e.g.
// "user:pass@tcp(localhost:3306)/dbname?parseTime=true". Never hardcode
// credentials; read the DSN from the environment.
type MySQLSaver struct {
	db *sql.DB
}

// NewMySQLSaver opens a connection pool against dsn and creates its schema
// if absent.
func NewMySQLSaver(dsn string) (*MySQLSaver, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: opening mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: pinging mysql: %w", err)
	}

	s := &MySQLSaver{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLSaver) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id VARCHAR(255) NOT NULL,
			namespace VARCHAR(255) NOT NULL,
			checkpoint_id VARCHAR(255) NOT NULL,
			parent_id VARCHAR(255),
			payload JSON NOT NULL,
			created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
			PRIMARY KEY (thread_id, namespace, checkpoint_id),
			INDEX idx_thread_ns_created (thread_id, namespace, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS pending_writes (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			checkpoint_id VARCHAR(255) NOT NULL,
			task_id VARCHAR(255) NOT NULL,
			channel VARCHAR(255) NOT NULL,
			value JSON NOT NULL,
			INDEX idx_checkpoint (checkpoint_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("persist: creating schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLSaver) Close() error {
	return s.db.Close()
}

func (s *MySQLSaver) Put(ctx context.Context, config pregel.CheckpointConfig, cp pregel.Checkpoint, parentID string) error {
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
		ON DUPLICATE KEY UPDATE parent_id = VALUES(parent_id), payload = VALUES(payload), created_at = VALUES(created_at)
	`, config.ThreadID, config.Namespace, cp.ID, parent, payload, time.Now())
	if err != nil {
		return fmt.Errorf("persist: writing checkpoint: %w", err)
	}
	return nil
}

func (s *MySQLSaver) PutWrites(ctx context.Context, config pregel.CheckpointConfig, writes []pregel.PendingWrite) error {
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

func (s *MySQLSaver) GetTuple(ctx context.Context, config pregel.CheckpointConfig) (pregel.CheckpointTuple, error) {
	var (
		row          *sql.Row
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

func (s *MySQLSaver) loadPendingWrites(ctx context.Context, checkpointID string) ([]pregel.PendingWrite, error) {
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

func (s *MySQLSaver) List(ctx context.Context, threadID, namespace string, limit int) ([]pregel.CheckpointTuple, error) {
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

func (s *MySQLSaver) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE pw FROM pending_writes pw
		JOIN checkpoints c ON c.checkpoint_id = pw.checkpoint_id
		WHERE c.thread_id = ?
	`, threadID); err != nil {
		return fmt.Errorf("persist: deleting pending writes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("persist: deleting checkpoints: %w", err)
	}
	return tx.Commit()
}
