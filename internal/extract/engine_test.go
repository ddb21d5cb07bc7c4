package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/dom"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

const baseURL = "https://tiktok.test"

const discoverHTML = `<html><body>
<div data-e2e="challenge-item"><h3>#Dance</h3><span data-e2e="challenge-item-views">15.2B views</span></div>
<div data-e2e="challenge-item"><h3></h3><span data-e2e="challenge-item-views">1B views</span></div>
<div data-e2e="challenge-item"><h3>#fyp</h3></div>
<div data-e2e="challenge-item"><h3>#comedy</h3><span data-e2e="challenge-item-posts">2M posts</span></div>
</body></html>`

func tagHTML(views string) string {
	return fmt.Sprintf(`<html><body><h2>1.1K followers</h2><strong>%s</strong><strong>9.9B views</strong><strong>12K posts</strong></body></html>`, views)
}

type fakePages struct {
	mu     sync.Mutex
	html   map[string]string
	errs   map[string]error
	delays map[string]time.Duration
	calls  []string
	panics map[string]bool
}

func newFakePages() *fakePages {
	return &fakePages{
		html:   map[string]string{},
		errs:   map[string]error{},
		delays: map[string]time.Duration{},
		panics: map[string]bool{},
	}
}

func (f *fakePages) Fetch(ctx context.Context, url string) (hashtag.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	delay := f.delays[url]
	err := f.errs[url]
	html, ok := f.html[url]
	panics := f.panics[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if panics {
		return panicDoc{}, nil
	}
	if !ok {
		return nil, errors.New("not found")
	}
	doc, err := dom.Parse([]byte(html))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type panicDoc struct{}

func (panicDoc) Query(string) []hashtag.Element { panic("selector engine exploded") }

func newEngine(maxResults int) *Engine {
	return New(Config{
		BaseURL:      baseURL + "/",
		MaxResults:   maxResults,
		Concurrency:  3,
		FetchTimeout: time.Second,
	}, nil, zap.NewNop())
}

func TestTrendingLiveExtraction(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/discover"] = discoverHTML

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeTrending, nil, pages)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, "dance", records[0].Hashtag)
	require.Equal(t, "15.2B views", records[0].ViewsDisplay)
	require.Equal(t, hashtag.NotAvailable, records[0].PostsDisplay)
	require.Equal(t, 1, *records[0].Position)

	// The nameless second entry is skipped but keeps its rank.
	require.Equal(t, "fyp", records[1].Hashtag)
	require.Equal(t, hashtag.NotAvailable, records[1].ViewsDisplay)
	require.Equal(t, 3, *records[1].Position)
	require.Equal(t, 4, *records[2].Position)

	require.Equal(t, "2M posts", records[2].PostsDisplay)
	for _, rec := range records {
		require.Equal(t, hashtag.OriginTrending, rec.Origin)
		require.Nil(t, rec.ExtractionError)
	}
}

func TestTrendingRespectsMaxResults(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/discover"] = discoverHTML

	records, err := newEngine(2).Extract(context.Background(), hashtag.ModeTrending, nil, pages)
	require.NoError(t, err)
	// The second entry has no name, so only one of the first two survives.
	require.Len(t, records, 1)
	require.Equal(t, "dance", records[0].Hashtag)
}

func TestTrendingFallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []hashtag.Record {
		pages := newFakePages()
		pages.errs[baseURL+"/discover"] = errors.New("navigation failed")
		records, err := newEngine(5).Extract(context.Background(), hashtag.ModeTrending, nil, pages)
		require.NoError(t, err)
		return records
	}
	first, second := run(), run()
	require.Equal(t, first, second)
	require.Len(t, first, 5)
	want := [][2]string{{"fyp", "2.1B"}, {"foryou", "1.8B"}, {"viral", "1.5B"}, {"trending", "1.2B"}, {"tiktok", "1.1B"}}
	for i, w := range want {
		require.Equal(t, w[0], first[i].Hashtag)
		require.Equal(t, w[1], first[i].ViewsDisplay)
	}
	for i, rec := range first {
		require.Equal(t, i+1, *rec.Position)
		require.Equal(t, hashtag.OriginTrending, rec.Origin)
		require.NotNil(t, rec.ExtractionError)
		require.Contains(t, *rec.ExtractionError, "navigation failed")
	}
}

func TestTrendingFallbackOnExtractionPanic(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.panics[baseURL+"/discover"] = true

	records, err := newEngine(3).Extract(context.Background(), hashtag.ModeTrending, nil, pages)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Contains(t, *records[0].ExtractionError, "panic")
}

func TestSearchPreservesInputOrder(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	for i, tag := range []string{"a", "b", "c"} {
		url := baseURL + "/tag/" + tag
		pages.html[url] = tagHTML(fmt.Sprintf("%d views", i+1))
		pages.delays[url] = time.Duration(3-i) * 30 * time.Millisecond
	}

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"a", "b", "c"}, pages)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, tag := range []string{"a", "b", "c"} {
		require.Equal(t, tag, records[i].Hashtag)
		require.Equal(t, fmt.Sprintf("%d views", i+1), records[i].ViewsDisplay)
		require.Equal(t, "12K posts", records[i].PostsDisplay)
		require.Equal(t, hashtag.OriginSearched, records[i].Origin)
		require.Nil(t, records[i].Position)
	}
}

func TestSearchIsolatesFailingHashtag(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/tag/ok1"] = tagHTML("1M views")
	pages.html[baseURL+"/tag/ok2"] = tagHTML("2M views")
	pages.errs[baseURL+"/tag/fail"] = errors.New("connection reset")

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"ok1", "fail", "ok2"}, pages)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Nil(t, records[0].ExtractionError)
	require.Equal(t, "1M views", records[0].ViewsDisplay)

	require.NotNil(t, records[1].ExtractionError)
	require.Contains(t, *records[1].ExtractionError, "connection reset")
	require.Equal(t, hashtag.NotAvailable, records[1].ViewsDisplay)
	require.Equal(t, hashtag.NotAvailable, records[1].PostsDisplay)
	require.Equal(t, hashtag.OriginSearched, records[1].Origin)

	require.Nil(t, records[2].ExtractionError)
	require.Equal(t, "2M views", records[2].ViewsDisplay)
}

func TestSearchNoMatchIsNotAnError(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/tag/quiet"] = `<html><body><strong>nothing here</strong></body></html>`

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"quiet"}, pages)
	require.NoError(t, err)
	require.Equal(t, hashtag.NotAvailable, records[0].ViewsDisplay)
	require.Equal(t, hashtag.NotAvailable, records[0].PostsDisplay)
	require.Nil(t, records[0].ExtractionError)
}

func TestSearchFirstMatchWins(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/tag/x"] = tagHTML("5 Views")

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"x"}, pages)
	require.NoError(t, err)
	require.Equal(t, "5 Views", records[0].ViewsDisplay)
}

func TestSearchTimeoutTakesItemFallback(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.delays[baseURL+"/tag/slow"] = time.Hour
	pages.html[baseURL+"/tag/fast"] = tagHTML("7 views")

	engine := New(Config{BaseURL: baseURL, FetchTimeout: 20 * time.Millisecond}, nil, nil)
	records, err := engine.Extract(context.Background(), hashtag.ModeSearch, []string{"slow", "fast"}, pages)
	require.NoError(t, err)
	require.NotNil(t, records[0].ExtractionError)
	require.Nil(t, records[1].ExtractionError)
	require.Equal(t, "7 views", records[1].ViewsDisplay)
}

func TestSearchPanicBecomesItemFailure(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.panics[baseURL+"/tag/bad"] = true
	pages.html[baseURL+"/tag/good"] = tagHTML("3 views")

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"bad", "good"}, pages)
	require.NoError(t, err)
	require.Contains(t, *records[0].ExtractionError, "panic")
	require.Nil(t, records[1].ExtractionError)
}

type failingWaiter struct{}

func (failingWaiter) Wait(context.Context, string) error { return errors.New("throttled") }

func TestSearchLimiterFailureIsItemScoped(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	engine := New(Config{BaseURL: baseURL}, failingWaiter{}, nil)
	records, err := engine.Extract(context.Background(), hashtag.ModeSearch, []string{"a"}, pages)
	require.NoError(t, err)
	require.Contains(t, *records[0].ExtractionError, "throttled")
	require.Empty(t, pages.calls)
}

func TestMonitorReusesSearch(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/tag/a"] = tagHTML("1 views")

	engine := newEngine(10)
	search, err := engine.Extract(context.Background(), hashtag.ModeSearch, []string{"a"}, pages)
	require.NoError(t, err)
	monitor, err := engine.Extract(context.Background(), hashtag.ModeMonitor, []string{"a"}, pages)
	require.NoError(t, err)
	require.Equal(t, search, monitor)
}

func TestUnknownModeFails(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	records, err := newEngine(10).Extract(context.Background(), hashtag.Mode("bogus"), nil, pages)
	require.ErrorIs(t, err, hashtag.ErrUnknownMode)
	require.Nil(t, records)
	require.Empty(t, pages.calls)
}

func TestTagURLEscapes(t *testing.T) {
	t.Parallel()

	require.Equal(t, baseURL+"/tag/a%20b", newEngine(1).tagURL("a b"))
	require.Equal(t, defaultBaseURL+"/discover", New(Config{}, nil, nil).discoverURL())
}

func TestWithMaxResultsCopies(t *testing.T) {
	t.Parallel()

	base := newEngine(10)
	capped := base.WithMaxResults(2)
	require.Equal(t, 2, capped.cfg.MaxResults)
	require.Equal(t, 10, base.cfg.MaxResults)
	require.Equal(t, 10, base.WithMaxResults(0).cfg.MaxResults)
}

func TestSearchMatchesSingularViewCount(t *testing.T) {
	t.Parallel()

	pages := newFakePages()
	pages.html[baseURL+"/tag/rare"] = `<html><body><h2>3 followers</h2><strong>1 View</strong></body></html>`

	records, err := newEngine(10).Extract(context.Background(), hashtag.ModeSearch, []string{"rare"}, pages)
	require.NoError(t, err)
	require.Equal(t, "1 View", records[0].ViewsDisplay)
	require.Nil(t, records[0].ExtractionError)
}
