package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteConfig configures the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration

	// MaxOpenConns caps the connection pool. Default: 10.
	MaxOpenConns int

	// MaxIdleConns caps idle connections. Default: 5.
	MaxIdleConns int
}

func (c SQLiteConfig) withDefaults() SQLiteConfig {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	return c
}

// SQLiteStorage persists audit records in a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger

	storeStmt  *sql.Stmt
	recentStmt *sql.Stmt
	pruneStmt  *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteStorage opens (creating if needed) the audit database at path
// with default settings.
func NewSQLiteStorage(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	return NewSQLiteStorageWithConfig(SQLiteConfig{Path: path}, logger)
}

// NewSQLiteStorageWithConfig opens the audit database with custom settings.
func NewSQLiteStorageWithConfig(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		logger: logger.With("component", "audit.storage"),
	}
	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit storage initialized", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStorage) initialize(cfg SQLiteConfig) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		time INTEGER NOT NULL,
		operation TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_records(time);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}

	return s.prepareStatements()
}

func (s *SQLiteStorage) prepareStatements() error {
	var err error

	s.storeStmt, err = s.db.Prepare(`
		INSERT INTO audit_records (id, time, operation, model, request_id, status, error_kind, duration_ms, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare store statement: %w", err)
	}

	s.recentStmt, err = s.db.Prepare(`
		SELECT id, time, operation, model, request_id, status, error_kind, duration_ms, input_tokens, output_tokens
		FROM audit_records
		ORDER BY time DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("prepare recent statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`DELETE FROM audit_records WHERE time < ?`)
	if err != nil {
		return fmt.Errorf("prepare prune statement: %w", err)
	}

	return nil
}

// Store persists one record.
func (s *SQLiteStorage) Store(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	_, err := s.storeStmt.ExecContext(ctx,
		record.ID,
		record.Time.UnixNano(),
		record.Operation,
		record.Model,
		record.RequestID,
		record.Status,
		record.ErrorKind,
		record.DurationMS,
		record.InputTokens,
		record.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRingCapacity
	}

	rows, err := s.recentStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			when int64
		)
		if err := rows.Scan(&r.ID, &when, &r.Operation, &r.Model, &r.RequestID, &r.Status, &r.ErrorKind, &r.DurationMS, &r.InputTokens, &r.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Time = time.Unix(0, when).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

// Prune deletes records older than olderThan.
func (s *SQLiteStorage) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune audit records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned records: %w", err)
	}
	return removed, nil
}

// Close closes prepared statements and the database.
func (s *SQLiteStorage) Close() error {
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.storeStmt, s.recentStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
