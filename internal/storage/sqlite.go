package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// reminderRetention bounds how long reminder-sent markers are kept. The
// widest window key is one day, so a week is plenty.
const reminderRetention = 7 * 24 * time.Hour

// SQLStore implements domain.Store and domain.Leaser on top of database/sql.
type SQLStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

var (
	_ domain.Store  = (*SQLStore)(nil)
	_ domain.Leaser = (*SQLStore)(nil)
	_ domain.Tx     = (*sqlTx)(nil)
)

func openSQLite(cfg Config, log logx.Logger) (*SQLStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if !isMemoryPath(path) {
		if err := os.MkdirAll(filepath.Dir(sqliteFilePath(path)), 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite prefers a single writer; it also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	if !isMemoryPath(path) {
		_, _ = db.Exec("PRAGMA journal_mode = WAL")
	}
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := NewWithDB(db, log)
	if err := st.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return st, nil
}

// NewWithDB wraps an already opened database. The schema is not applied.
func NewWithDB(db *sql.DB, log logx.Logger) *SQLStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SQLStore{db: db, log: log, pruneEvery: 200}
}

// isMemoryPath reports an in-memory database: ":memory:", "file::memory:"
// or any URI with mode=memory.
func isMemoryPath(p string) bool {
	if p == ":memory:" || sqliteFilePath(p) == ":memory:" {
		return true
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		for _, kv := range strings.Split(p[i+1:], "&") {
			if kv == "mode=memory" {
				return true
			}
		}
	}
	return false
}

// sqliteFilePath strips the "file:" scheme and URI parameters from a DSN.
func sqliteFilePath(p string) string {
	p = strings.TrimPrefix(p, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside one database transaction. Any error returned by fn
// rolls the whole unit back.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (s *SQLStore) maybePrune() {
	if s.opCount.Add(1)%s.pruneEvery != 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cutoff := time.Now().Add(-reminderRetention).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminder_log WHERE sent_at < ?`, cutoff); err != nil {
		s.log.Debug("reminder_log prune failed", logx.Err(err))
	}
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
