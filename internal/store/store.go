// Package store implements the SQLite-backed catalog behind the entity
// accessor, the link graph, the context panel cache, the user directory, and
// the search query log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
	"github.com/davitacols/recall-sub001/internal/panel"
	"github.com/davitacols/recall-sub001/internal/search"
)

// Catalog wraps a pooled sqlx.DB connection to the SQLite catalog.
type Catalog struct {
	db *sqlx.DB
}

var (
	_ entity.Accessor      = (*Catalog)(nil)
	_ entity.UserDirectory = (*Catalog)(nil)
	_ linkgraph.Store      = (*Catalog)(nil)
	_ panel.Store          = (*Catalog)(nil)
	_ panel.ExpertSource   = (*Catalog)(nil)
	_ panel.HistorySource  = (*Catalog)(nil)
	_ search.LogStore      = (*Catalog)(nil)
	_ search.TagSource     = (*Catalog)(nil)
)

// Config controls the SQLite connection pool.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the baseline connection settings.
func DefaultConfig() Config {
	return Config{
		Path:            filepath.Join("data", "catalog.db"),
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Open constructs a Catalog backed by the SQLite database at the provided
// path. The schema is migrated on first use.
func Open(path string) (*Catalog, error) {
	cfg := DefaultConfig()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Catalog using the provided configuration.
func OpenWithConfig(cfg Config) (*Catalog, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingTimeout := cfg.BusyTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	catalog := &Catalog{db: db}
	if err := catalog.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return catalog, nil
}

// Close releases the underlying database resources.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying sqlx.DB for advanced callers.
func (c *Catalog) DB() *sqlx.DB {
	if c == nil {
		return nil
	}
	return c.db
}

func (c *Catalog) migrate(ctx context.Context) error {
	if c == nil || c.db == nil {
		return errors.New("catalog not initialised")
	}
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Timestamps are stored as unix milliseconds so scans stay driver-agnostic.
var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS entities (
                id TEXT NOT NULL,
                org_id TEXT NOT NULL,
                type TEXT NOT NULL,
                title TEXT NOT NULL,
                body TEXT NOT NULL DEFAULT '',
                tags TEXT NOT NULL DEFAULT '[]',
                keywords TEXT NOT NULL DEFAULT '[]',
                author_id TEXT,
                status TEXT,
                priority TEXT,
                outcome TEXT,
                was_successful INTEGER,
                rationale TEXT,
                lessons TEXT,
                conversation_id TEXT,
                stakeholders TEXT,
                deadline INTEGER,
                reviewed_at INTEGER,
                implemented_at INTEGER,
                created_at INTEGER NOT NULL,
                updated_at INTEGER NOT NULL,
                PRIMARY KEY (org_id, type, id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_entities_org_type_created ON entities(org_id, type, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_entities_org_type_status ON entities(org_id, type, status);`,
	`CREATE INDEX IF NOT EXISTS idx_entities_org_author ON entities(org_id, author_id);`,
	`CREATE TABLE IF NOT EXISTS content_links (
                org_id TEXT NOT NULL,
                source_type TEXT NOT NULL,
                source_id TEXT NOT NULL,
                target_type TEXT NOT NULL,
                target_id TEXT NOT NULL,
                link_type TEXT NOT NULL,
                strength REAL NOT NULL DEFAULT 0,
                is_auto_generated INTEGER NOT NULL DEFAULT 0,
                created_by TEXT,
                created_at INTEGER NOT NULL,
                updated_at INTEGER NOT NULL,
                PRIMARY KEY (org_id, source_type, source_id, target_type, target_id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_links_org_source ON content_links(org_id, source_type, source_id);`,
	`CREATE INDEX IF NOT EXISTS idx_links_org_target ON content_links(org_id, target_type, target_id);`,
	`CREATE TABLE IF NOT EXISTS context_panels (
                org_id TEXT NOT NULL,
                entity_type TEXT NOT NULL,
                entity_id TEXT NOT NULL,
                payload TEXT NOT NULL,
                last_computed INTEGER NOT NULL,
                PRIMARY KEY (org_id, entity_type, entity_id)
        );`,
	`CREATE TABLE IF NOT EXISTS users (
                id TEXT PRIMARY KEY,
                name TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS search_query_log (
                id TEXT PRIMARY KEY,
                org_id TEXT NOT NULL,
                user_id TEXT,
                query_text TEXT NOT NULL,
                results_count INTEGER NOT NULL,
                response_time_ms INTEGER NOT NULL,
                created_at INTEGER NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_query_log_org_created ON search_query_log(org_id, created_at DESC);`,
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t
}
