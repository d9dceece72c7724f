package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logx "jobwrk/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps the blob as a JSON document in a single-row table.
type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	path string
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fsErr("mkdir", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fsErr("open", path, err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, path: path}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fsErr("migrate", path, err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Location() string { return s.path }

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (any, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM worker_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.put(ctx, []byte("{}")); err != nil {
			return nil, err
		}
		s.log.Debug("state initialized", logx.String("path", s.path), logx.String("driver", "sqlite"))
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fsErr("read", s.path, err)
	}

	v, err := decodeValue([]byte(raw))
	if err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	s.log.Debug("state loaded", logx.String("path", s.path), logx.String("driver", "sqlite"), logx.String("type", kindOf(v)))
	return v, nil
}

func (s *sqliteStore) Save(ctx context.Context, b *Blob) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if b == nil {
		b = NewBlob(nil)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fsErr("encode", s.path, err)
	}
	return s.put(ctx, data)
}

func (s *sqliteStore) put(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO worker_state(id, data, updated_at) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fsErr("write", s.path, err)
	}
	return nil
}
