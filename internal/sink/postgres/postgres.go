// Package postgres stores page records as JSONB rows.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/a11y-crawler/internal/clock"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/id"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "page_reports"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool and destination table.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink inserts one row per record.
type Sink struct {
	pool  execCloser
	table string
	clock clock.Clock
	ids   id.Generator
}

// New connects a pool and returns a Sink. The table is created when missing.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool builds a Sink over an existing pool.
func NewWithPool(pool execCloser, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{pool: pool, table: table, clock: clock.System{}, ids: id.V7{}}, nil
}

// EnsureSchema creates the destination table if it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          uuid PRIMARY KEY,
	url         text NOT NULL,
	title       text NOT NULL,
	results     jsonb NOT NULL,
	created_at  timestamptz NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Append inserts the record keyed by its ID. A row already stored under
// that ID is left as is.
func (s *Sink) Append(ctx context.Context, record crawler.PageRecord) error {
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	rowID := record.ID
	if rowID == uuid.Nil {
		if rowID, err = s.ids.NewID(); err != nil {
			return fmt.Errorf("row id: %w", err)
		}
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, url, title, results, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, rowID, record.URL, record.Title, results, createdAt); err != nil {
		return fmt.Errorf("insert page report: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Sink) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
