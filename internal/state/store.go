package state

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "jobwrk/pkg/logx"
)

// Store loads and saves the state blob.
type Store interface {
	// Load returns the persisted JSON value, whatever its type. When nothing
	// was persisted yet it returns an empty object and persists it immediately.
	Load(ctx context.Context) (any, error)
	// Save replaces the persisted value with b's current contents.
	Save(ctx context.Context, b *Blob) error
	// Location is the file path (or DSN) backing the store.
	Location() string
	Close() error
}

// Config configures the state backend.
//
// Driver values:
//   - "file" (or empty): single JSON file at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("state path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file":
		return NewFile(cfg.Path, log), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
