// Package postgres persists job listings in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

const defaultTable = "jobs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ListingStoreConfig controls the Postgres connection pool used for listing rows.
type ListingStoreConfig struct {
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

// ListingStore writes listing rows into Postgres. Rows are unique on
// (company, link) so repeated runs are idempotent.
type ListingStore struct {
	pool  execCloser
	table string
}

// NewListingStore creates a Postgres-backed ListingStore using the provided config.
func NewListingStore(ctx context.Context, cfg ListingStoreConfig) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("listings.dsn is required")
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
	return &ListingStore{pool: pool, table: table}, nil
}

// NewListingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewListingStoreWithPool(pool execCloser, table string) (*ListingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ListingStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the listings table when it does not exist.
func (s *ListingStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	company TEXT NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	matched_keyword TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT 'Unknown',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company, link)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// RecordListing implements crawler.ListingRecorder.
func (s *ListingStore) RecordListing(ctx context.Context, listing crawler.JobListing) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("listing store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (company, title, link, matched_keyword, location)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (company, link) DO NOTHING`, s.table)
	_, err := s.pool.Exec(ctx, query,
		listing.Company,
		listing.Title,
		listing.NormalizedLink,
		listing.MatchedKeyword,
		listing.Location,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// DeleteCompany removes every listing row for company.
func (s *ListingStore) DeleteCompany(ctx context.Context, company string) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE company = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, company)
	if err != nil {
		return 0, fmt.Errorf("delete listings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
