package usage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStorage persists usage counters in a SQLite database using the
// CGO-free modernc.org/sqlite driver. Suitable for single-instance
// deployments that want accounting to survive restarts.
type SQLiteStorage struct {
	db *sql.DB
	mu sync.RWMutex

	addStmt   *sql.Stmt
	rangeStmt *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// SQLiteConfig configures the SQLite usage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStorage opens (creating if needed) the usage database at path
// with default settings.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	return NewSQLiteStorageWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStorageWithConfig opens the usage database with custom settings.
func NewSQLiteStorageWithConfig(cfg SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize usage schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare usage statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_daily (
		day TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		requests INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, model)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_day ON usage_daily(day);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) prepareStatements() error {
	var err error

	s.addStmt, err = s.db.Prepare(`
		INSERT INTO usage_daily (day, model, input_tokens, output_tokens, requests)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (day, model) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			requests = requests + 1
	`)
	if err != nil {
		return fmt.Errorf("prepare add statement: %w", err)
	}

	s.rangeStmt, err = s.db.Prepare(`
		SELECT day, model, input_tokens, output_tokens, requests
		FROM usage_daily
		WHERE day >= ? AND day <= ?
		ORDER BY day, model
	`)
	if err != nil {
		return fmt.Errorf("prepare range statement: %w", err)
	}

	return nil
}

// Add accumulates one sample into the (day, model) row.
func (s *SQLiteStorage) Add(ctx context.Context, day, model string, inputTokens, outputTokens int64) error {
	if day == "" {
		return fmt.Errorf("day cannot be empty")
	}
	if model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.addStmt.ExecContext(ctx, day, model, inputTokens, outputTokens); err != nil {
		return fmt.Errorf("accumulate usage row: %w", err)
	}
	return nil
}

// Range returns rows with from <= day <= to, ordered by day then model.
func (s *SQLiteStorage) Range(ctx context.Context, from, to string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rangeStmt.QueryContext(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query usage rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Day, &r.Model, &r.InputTokens, &r.OutputTokens, &r.Requests); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return out, nil
}

// Close closes prepared statements and the database.
func (s *SQLiteStorage) Close() error {
	s.closeOnce.Do(func() {
		if s.addStmt != nil {
			s.addStmt.Close()
		}
		if s.rangeStmt != nil {
			s.rangeStmt.Close()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
