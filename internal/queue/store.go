package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"easel/internal/config"
	"easel/internal/logging"
)

// Store persists queue snapshots in SQLite so buffered operations survive
// process restart. Save always writes the full ordered snapshot in one
// transaction; Load returns it in enqueue order.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   dbPath,
		logger: logging.WithComponent(logger, "queue-store"),
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save replaces the persisted snapshot with the given operations, preserving
// their order. The whole write happens in one transaction so a crash never
// leaves a half-written snapshot.
func (s *Store) Save(ctx context.Context, ops []Op) error {
	if s == nil || s.db == nil {
		return errors.New("queue store unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queued_ops`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO queued_ops (op_id, kind, payload, enqueued_at, canvas_id, actor_id)
         VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		payload, err := op.encodePayload()
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(
			ctx,
			op.ID,
			string(op.Kind),
			payload,
			op.EnqueuedAt.UTC().Format(time.RFC3339Nano),
			nullableString(op.CanvasID),
			nullableString(op.ActorID),
		); err != nil {
			return fmt.Errorf("insert op %s: %w", op.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted operations in enqueue order. Rows that fail to
// decode are skipped and logged rather than failing the whole load; a
// corrupted snapshot degrades to whatever is readable.
func (s *Store) Load(ctx context.Context) ([]Op, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("queue store unavailable")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT op_id, kind, payload, enqueued_at, canvas_id, actor_id
         FROM queued_ops ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var ops []Op
	for rows.Next() {
		var (
			op          Op
			kindStr     string
			payload     string
			enqueuedRaw string
			canvasID    sql.NullString
			actorID     sql.NullString
		)
		if err := rows.Scan(&op.ID, &kindStr, &payload, &enqueuedRaw, &canvasID, &actorID); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}

		kind, ok := ParseKind(kindStr)
		if !ok {
			s.logger.Warn("skipping persisted op with unknown kind",
				slog.String(logging.FieldOpID, op.ID), slog.String(logging.FieldOpKind, kindStr))
			continue
		}
		op.Kind = kind
		if err := decodePayload(&op, payload); err != nil {
			s.logger.Warn("skipping persisted op with corrupt payload",
				slog.String(logging.FieldOpID, op.ID), slog.Any("error", err))
			continue
		}

		enqueuedAt, err := time.Parse(time.RFC3339Nano, enqueuedRaw)
		if err != nil {
			s.logger.Warn("skipping persisted op with corrupt timestamp",
				slog.String(logging.FieldOpID, op.ID), slog.String("enqueued_at", enqueuedRaw))
			continue
		}
		op.EnqueuedAt = enqueuedAt
		op.CanvasID = canvasID.String
		op.ActorID = actorID.String
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Count returns the number of persisted operations.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("queue store unavailable")
	}
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queued_ops`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count ops: %w", err)
	}
	return count, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	if s == nil || s.db == nil {
		return DatabaseHealth{}, errors.New("queue database connection unavailable")
	}
	health := DatabaseHealth{DBPath: s.path}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'queued_ops'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM queued_ops")
	if err := row.Scan(&health.TotalOps); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count queued ops: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrity string
	if err := row.Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	return health, nil
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalOps         int
	Error            string
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
