// Package postgres mirrors extraction records into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitemap-harvester/internal/extract"
)

// DefaultTable receives rows when no table is configured.
const DefaultTable = "extractions"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes extraction records into Postgres.
type RecordStore struct {
	pool  execCloser
	table string
}

// NewRecordStore connects a pool using cfg.
func NewRecordStore(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable creates the target table when it does not exist.
func (s *RecordStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL,
	url          TEXT NOT NULL,
	title        TEXT NOT NULL,
	body         TEXT,
	screenshot   BOOLEAN NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// InsertRecords writes one row per record. A nil text is stored as NULL.
// It stops at the first failed insert.
func (s *RecordStore) InsertRecords(ctx context.Context, runID string, at time.Time, records []extract.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	extracted_at,
	url,
	title,
	body,
	screenshot
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.table)
	for _, rec := range records {
		if _, err := s.pool.Exec(ctx, query, runID, at, rec.URL, rec.Title, rec.Text, rec.ScreenshotTaken); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.URL, err)
		}
	}
	return nil
}
