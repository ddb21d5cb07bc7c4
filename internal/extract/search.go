package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fallback"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
)

type searchStrategy struct {
	engine *Engine
}

func (searchStrategy) name() string { return "search" }

// extract looks up every target concurrently and joins results by input index.
func (s searchStrategy) extract(ctx context.Context, pages hashtag.PageFetcher, targets []string) []hashtag.Record {
	out := make([]hashtag.Record, len(targets))
	var g errgroup.Group
	g.SetLimit(s.engine.cfg.Concurrency)
	for i, tag := range targets {
		g.Go(func() error {
			out[i] = s.lookup(ctx, pages, tag)
			return nil
		})
	}
	_ = g.Wait() // lookups never return errors
	return out
}

// lookup isolates one hashtag: any failure becomes a flagged sentinel record.
func (s searchStrategy) lookup(ctx context.Context, pages hashtag.PageFetcher, tag string) (rec hashtag.Record) {
	e := s.engine
	defer func() {
		if r := recover(); r != nil {
			rec = s.failed(tag, fmt.Errorf("lookup panic: %v", r))
		}
	}()

	start := time.Now()
	doc, err := e.fetch(ctx, pages, e.tagURL(tag))
	metrics.ObserveFetch(s.name(), err, time.Since(start))
	if err != nil {
		return s.failed(tag, err)
	}

	rec = hashtag.Record{
		Hashtag:      tag,
		ViewsDisplay: hashtag.NotAvailable,
		PostsDisplay: hashtag.NotAvailable,
		Origin:       hashtag.OriginSearched,
	}
	sel := e.cfg.Selectors
	nodes := doc.Query(sel.StatNodes)
	if v, ok := firstContaining(nodes, sel.ViewMarker); ok {
		rec.ViewsDisplay = v
	}
	if p, ok := firstContaining(nodes, sel.PostsMarker); ok {
		rec.PostsDisplay = p
	}
	return rec
}

func (s searchStrategy) failed(tag string, err error) hashtag.Record {
	metrics.ObserveFallback(metrics.ScopeItem)
	s.engine.logger.Warn("hashtag lookup failed; using sentinel record",
		zap.String("hashtag", tag),
		zap.Error(err),
	)
	return fallback.Unavailable(tag, err)
}

// firstContaining returns the first node text containing marker, case-insensitively.
func firstContaining(nodes []hashtag.Element, marker string) (string, bool) {
	marker = strings.ToLower(marker)
	for _, n := range nodes {
		txt := n.Text()
		if strings.Contains(strings.ToLower(txt), marker) {
			return txt, true
		}
	}
	return "", false
}
