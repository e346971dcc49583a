package historystore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"genguard/internal/config"
	"genguard/internal/diagnosis"
	"genguard/internal/stats"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. History is telemetry, so
// a database from another version is rejected rather than migrated.
const schemaVersion = 1

const (
	busyAttempts       = 5
	busyInitialBackoff = 10 * time.Millisecond
	busyMaxBackoff     = 200 * time.Millisecond
	lockRetryDelay     = 50 * time.Millisecond
	defaultLockTimeout = 5 * time.Second
	defaultRecentLimit = 20
)

var (
	// ErrLockTimeout is returned when the history lock could not be acquired.
	ErrLockTimeout = errors.New("history lock timeout")
	// ErrSchemaMismatch is returned when the database was written by another schema version.
	ErrSchemaMismatch = errors.New("history schema version mismatch")
)

// Store persists historical stats and the append-only error analysis log in SQLite.
type Store struct {
	db          *sql.DB
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration
}

// Open initializes or connects to the history database under the data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryDBPath())
}

// OpenPath opens the database at dbPath, creating the schema on first use.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{
		db:          db,
		path:        dbPath,
		lock:        flock.New(dbPath + ".lock"),
		lockTimeout: defaultLockTimeout,
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		return s.write(ctx, "create schema", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
			return err
		})
	default:
		return fmt.Errorf("%w: %s has version %d, expected %d (delete it to start fresh)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadHistoricalStats returns the persisted aggregates, or an empty value
// when nothing has been saved yet.
func (s *Store) LoadHistoricalStats(ctx context.Context) (stats.HistoricalStats, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM historical_stats WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return stats.HistoricalStats{}.Clone(), nil
	}
	if err != nil {
		return stats.HistoricalStats{}, fmt.Errorf("load historical stats: %w", err)
	}
	var out stats.HistoricalStats
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return stats.HistoricalStats{}, fmt.Errorf("decode historical stats: %w", err)
	}
	return out.Clone(), nil
}

// SaveHistoricalStats replaces the persisted aggregates. Writers in other
// processes are serialized by a file lock; the last writer wins.
func (s *Store) SaveHistoricalStats(ctx context.Context, snapshot stats.HistoricalStats) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode historical stats: %w", err)
	}
	updated := time.Now().UTC().Format(time.RFC3339Nano)
	return s.withLock(ctx, func() error {
		return s.write(ctx, "save historical stats", func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO historical_stats (id, payload, updated_at) VALUES (1, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
				string(payload), updated)
			return err
		})
	})
}

// AppendAnalysis adds one record to the audit log. Records are never updated.
func (s *Store) AppendAnalysis(ctx context.Context, analysis diagnosis.ErrorAnalysis) error {
	if strings.TrimSpace(analysis.ID) == "" {
		return errors.New("append analysis: id required")
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	recorded := analysis.Timestamp
	if recorded.IsZero() {
		recorded = time.Now()
	}
	return s.write(ctx, "append analysis", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO error_analyses (id, request_id, attempt_number, category, recorded_at, payload)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			analysis.ID, analysis.RequestID, analysis.AttemptNumber, string(analysis.Category),
			recorded.UTC().Format(time.RFC3339Nano), string(payload))
		return err
	})
}

// RecentAnalyses returns the newest records first.
func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]diagnosis.ErrorAnalysis, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM error_analyses ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []diagnosis.ErrorAnalysis
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		var analysis diagnosis.ErrorAnalysis
		if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

// Reset deletes the historical aggregates and the analysis log in one transaction.
func (s *Store) Reset(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		return s.write(ctx, "reset history", func(tx *sql.Tx) error {
			for _, table := range []string{"historical_stats", "error_analyses"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// write runs fn in a transaction, retrying the whole transaction while
// another connection holds the database.
func (s *Store) write(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	delay := busyInitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = s.inTx(ctx, fn); err == nil {
			return nil
		}
		if !isBusy(err) || attempt == busyAttempts {
			return fmt.Errorf("%s: %w", op, err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		delay = min(delay*2, busyMaxBackoff)
	}
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// isBusy reports SQLITE_BUSY and SQLITE_LOCKED, including extended codes.
func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	ok, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s", ErrLockTimeout, s.lock.Path())
		}
		return fmt.Errorf("acquire history lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockTimeout, s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

var _ stats.Store = (*Store)(nil)
