package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/dom"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fallback"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
)

type trendingStrategy struct {
	engine *Engine
}

func (trendingStrategy) name() string { return "trending" }

// extract replaces the whole batch with the reference list on any failure.
func (s trendingStrategy) extract(ctx context.Context, pages hashtag.PageFetcher, _ []string) []hashtag.Record {
	e := s.engine
	start := time.Now()
	records, err := s.live(ctx, pages)
	metrics.ObserveFetch(s.name(), err, time.Since(start))
	if err == nil {
		if len(records) == 0 {
			e.logger.Warn("discovery page yielded no hashtags", zap.String("url", e.discoverURL()))
		}
		return records
	}

	metrics.ObserveFallback(metrics.ScopeBatch)
	e.logger.Warn("trending extraction failed; using fallback list",
		zap.String("url", e.discoverURL()),
		zap.Int("max_results", e.cfg.MaxResults),
		zap.Error(err),
	)
	msg := err.Error()
	out := fallback.Trending(e.cfg.MaxResults)
	for i := range out {
		out[i].ExtractionError = &msg
	}
	return out
}

func (s trendingStrategy) live(ctx context.Context, pages hashtag.PageFetcher) (records []hashtag.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("trending extraction panic: %v", r)
		}
	}()
	e := s.engine
	doc, err := e.fetch(ctx, pages, e.discoverURL())
	if err != nil {
		return nil, err
	}
	sel := e.cfg.Selectors
	entries := doc.Query(sel.TrendingItem)
	if len(entries) > e.cfg.MaxResults {
		entries = entries[:e.cfg.MaxResults]
	}
	records = make([]hashtag.Record, 0, len(entries))
	for i, entry := range entries {
		raw, ok := dom.FirstText(entry, sel.TrendingName)
		if !ok {
			continue
		}
		name := hashtag.Normalize(raw)
		if name == "" {
			continue
		}
		// Rank follows the page, so a skipped entry still holds its slot.
		pos := i + 1
		records = append(records, hashtag.Record{
			Hashtag:      name,
			ViewsDisplay: textOr(entry, sel.TrendingViews),
			PostsDisplay: textOr(entry, sel.TrendingPosts),
			Position:     &pos,
			Origin:       hashtag.OriginTrending,
		})
	}
	return records, nil
}

func textOr(node hashtag.Queryable, selector string) string {
	if txt, ok := dom.FirstText(node, selector); ok {
		return txt
	}
	return hashtag.NotAvailable
}
