package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// ConfigFromURL accepts the tracking server's store URI form
// (sqlite:///relative.db, sqlite:////absolute.db) or a bare path.
func ConfigFromURL(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	path := raw
	if strings.HasPrefix(raw, "sqlite:") {
		path = strings.TrimPrefix(raw, "sqlite:///")
		if path == raw {
			return Config{}, fmt.Errorf("sqlite url must start with sqlite:///: %q", raw)
		}
	}
	cfg := Config{Path: path, BusyTimeout: 5 * time.Second}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("sqlite path is required")
	}
	if c.BusyTimeout < 0 {
		return errors.New("sqlite busy timeout must be >= 0")
	}
	return nil
}

// Open returns a single-connection handle; the pruner never issues
// concurrent statements and an in-memory database lives per connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
