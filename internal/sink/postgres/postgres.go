// Package postgres stores one row per hashtag record in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

const defaultTable = "hashtag_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the sink uses.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Sink inserts records inside one transaction per run.
type Sink struct {
	pool  pool
	table string
}

// New connects to Postgres.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("output.postgres_dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: p, table: table}, nil
}

// NewWithPool builds a Sink from an existing pool.
func NewWithPool(p pool, table string) (*Sink, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Sink{pool: p, table: name}, nil
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

// Close releases the pool.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table when it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id           TEXT        NOT NULL,
	hashtag          TEXT        NOT NULL,
	views_display    TEXT        NOT NULL,
	posts_display    TEXT        NOT NULL,
	position         INTEGER,
	origin           TEXT        NOT NULL,
	extraction_error TEXT,
	scrape_mode      TEXT        NOT NULL,
	scraped_at       TIMESTAMPTZ NOT NULL,
	enrichment       JSONB       NOT NULL,
	PRIMARY KEY (run_id, hashtag)
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// enrichment holds the optional fields stored as JSONB.
type enrichment struct {
	TopVideos        []hashtag.VideoSummary      `json:"topVideos,omitempty"`
	RelatedHashtags  []string                    `json:"relatedHashtags,omitempty"`
	SentimentSummary *hashtag.SentimentSummary   `json:"sentimentSummary,omitempty"`
	TopInfluencers   []hashtag.InfluencerSummary `json:"topInfluencers,omitempty"`
}

// Append implements hashtag.Sink. Either every record of the run is stored or none is.
func (s *Sink) Append(ctx context.Context, run hashtag.Run) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(run.Records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	hashtag,
	views_display,
	posts_display,
	position,
	origin,
	extraction_error,
	scrape_mode,
	scraped_at,
	enrichment
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.table)

	for _, rec := range run.Records {
		extra, mErr := json.Marshal(enrichment{
			TopVideos:        rec.TopVideos,
			RelatedHashtags:  rec.RelatedHashtags,
			SentimentSummary: rec.SentimentSummary,
			TopInfluencers:   rec.TopInfluencers,
		})
		if mErr != nil {
			return fmt.Errorf("marshal enrichment for %s: %w", rec.Hashtag, mErr)
		}
		if _, err = tx.Exec(ctx, query,
			run.ID,
			rec.Hashtag,
			rec.ViewsDisplay,
			rec.PostsDisplay,
			rec.Position,
			string(rec.Origin),
			rec.ExtractionError,
			string(rec.ScrapeMode),
			rec.ScrapedAt,
			extra,
		); err != nil {
			return fmt.Errorf("insert %s: %w", rec.Hashtag, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
