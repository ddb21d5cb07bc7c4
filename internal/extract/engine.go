// Package extract retrieves hashtag listings and per-hashtag stats from platform pages.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

const (
	defaultBaseURL      = "https://www.tiktok.com"
	defaultDiscoverPath = "/discover"
	defaultTagPath      = "/tag/"
	defaultConcurrency  = 4
	defaultMaxResults   = 50
	defaultFetchTimeout = 30 * time.Second
)

// Selectors locates hashtag data in platform markup.
type Selectors struct {
	TrendingItem  string `mapstructure:"trending_item"`
	TrendingName  string `mapstructure:"trending_name"`
	TrendingViews string `mapstructure:"trending_views"`
	TrendingPosts string `mapstructure:"trending_posts"`
	StatNodes     string `mapstructure:"stat_nodes"`
	ViewMarker    string `mapstructure:"view_marker"`
	PostsMarker   string `mapstructure:"posts_marker"`
}

// DefaultSelectors returns selectors matching the platform's current markup.
func DefaultSelectors() Selectors {
	return Selectors{
		TrendingItem:  `[data-e2e="challenge-item"]`,
		TrendingName:  `[data-e2e="challenge-item-title"], h3`,
		TrendingViews: `[data-e2e="challenge-item-views"]`,
		TrendingPosts: `[data-e2e="challenge-item-posts"]`,
		StatNodes:     `strong, h2, [data-e2e*="count"], [data-e2e*="views"]`,
		ViewMarker:    "view",
		PostsMarker:   "posts",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.TrendingItem == "" {
		s.TrendingItem = d.TrendingItem
	}
	if s.TrendingName == "" {
		s.TrendingName = d.TrendingName
	}
	if s.TrendingViews == "" {
		s.TrendingViews = d.TrendingViews
	}
	if s.TrendingPosts == "" {
		s.TrendingPosts = d.TrendingPosts
	}
	if s.StatNodes == "" {
		s.StatNodes = d.StatNodes
	}
	if s.ViewMarker == "" {
		s.ViewMarker = d.ViewMarker
	}
	if s.PostsMarker == "" {
		s.PostsMarker = d.PostsMarker
	}
	return s
}

// Waiter paces outgoing fetches.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls the extraction engine.
type Config struct {
	BaseURL      string
	MaxResults   int
	Concurrency  int
	FetchTimeout time.Duration
	Selectors    Selectors
}

// Engine extracts hashtag records using a page fetcher owned by the caller.
type Engine struct {
	cfg     Config
	limiter Waiter
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New constructs an Engine. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	cfg.Selectors = cfg.Selectors.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		tracer:  otel.Tracer("github.com/JakeFAU/tiktok-hashtag-scraper/internal/extract"),
	}
}

// strategy is one extraction path. Search and monitor share an implementation.
type strategy interface {
	name() string
	extract(ctx context.Context, pages hashtag.PageFetcher, targets []string) []hashtag.Record
}

func (e *Engine) strategyFor(mode hashtag.Mode) (strategy, error) {
	switch mode {
	case hashtag.ModeTrending:
		return trendingStrategy{engine: e}, nil
	case hashtag.ModeSearch, hashtag.ModeMonitor:
		return searchStrategy{engine: e}, nil
	default:
		return nil, fmt.Errorf("%w: %q", hashtag.ErrUnknownMode, mode)
	}
}

// Extract returns one record per discovered or requested hashtag.
// The only error is an unrecognized mode; fetch failures become fallback data.
func (e *Engine) Extract(
	ctx context.Context,
	mode hashtag.Mode,
	targets []string,
	pages hashtag.PageFetcher,
) ([]hashtag.Record, error) {
	s, err := e.strategyFor(mode)
	if err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "extract."+s.name(), trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("targets", len(targets)),
	))
	defer span.End()

	records := s.extract(ctx, pages, targets)
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

func (e *Engine) discoverURL() string {
	return e.cfg.BaseURL + defaultDiscoverPath
}

func (e *Engine) tagURL(tag string) string {
	return e.cfg.BaseURL + defaultTagPath + url.PathEscape(tag)
}

// fetch waits for the limiter and loads url under the per-fetch timeout.
func (e *Engine) fetch(ctx context.Context, pages hashtag.PageFetcher, url string) (hashtag.Document, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	doc, err := pages.Fetch(fetchCtx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch %s: empty document", url)
	}
	return doc, nil
}

// WithMaxResults returns a copy of e that caps trending results at n.
// Non-positive n keeps the current cap.
func (e *Engine) WithMaxResults(n int) *Engine {
	clone := *e
	if n > 0 {
		clone.cfg.MaxResults = n
	}
	return &clone
}
