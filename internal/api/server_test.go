package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/memory"
)

const knownID = "01890a5d-ac96-774b-bcce-b302099a8057"

type fakeRunner struct {
	store *memory.Store
	got   *hashtag.Options
	err   error
	panic bool
}

func (f *fakeRunner) Run(ctx context.Context, opts *hashtag.Options) (hashtag.Run, error) {
	if f.panic {
		panic("runner exploded")
	}
	cp := *opts
	f.got = &cp
	if f.err != nil && !errors.Is(f.err, errSink) {
		return hashtag.Run{}, f.err
	}
	run := hashtag.Run{
		ID:           knownID,
		Mode:         opts.Mode,
		OutputFormat: opts.OutputFormat,
		StartedAt:    time.Unix(100, 0).UTC(),
		Records: []hashtag.Record{{
			Hashtag: "dance", ViewsDisplay: "1M views", PostsDisplay: hashtag.NotAvailable,
			Origin: hashtag.OriginSearched, ScrapeMode: opts.Mode,
		}},
	}
	if f.store != nil {
		_ = f.store.Append(ctx, run)
	}
	return run, f.err
}

var errSink = errors.New("sink append: disk full")

func newTestServer(t *testing.T, runner *fakeRunner, cfg Config) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(10)
	if runner != nil {
		runner.store = store
	}
	if cfg.Defaults.Mode == "" {
		cfg.Defaults = hashtag.DefaultOptions()
	}
	return NewServer(runner, store, cfg, zap.NewNop()), store
}

func do(t *testing.T, s *Server, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{}, Config{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	notReady := NewServer(nil, nil, Config{}, nil)
	rec = do(t, notReady, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointToggle(t *testing.T) {
	t.Parallel()

	on, _ := newTestServer(t, &fakeRunner{}, Config{MetricsEnabled: true})
	require.Equal(t, http.StatusOK, do(t, on, http.MethodGet, "/metrics", nil, nil).Code)

	off, _ := newTestServer(t, &fakeRunner{}, Config{})
	require.Equal(t, http.StatusNotFound, do(t, off, http.MethodGet, "/metrics", nil, nil).Code)
}

func TestSubmitRunMergesDefaults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner, Config{})
	body := []byte(`{"mode":"search","hashtags":["#Dance"],"includeVideoDetails":false,"includeInfluencers":true}`)

	rec := do(t, s, http.MethodPost, "/v1/runs", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, hashtag.ModeSearch, runner.got.Mode)
	require.Equal(t, []string{"#Dance"}, runner.got.Hashtags)
	require.Equal(t, 50, runner.got.MaxResults)
	require.False(t, runner.got.IncludeVideoDetails)
	require.True(t, runner.got.IncludeRelatedHashtags)
	require.True(t, runner.got.IncludeInfluencers)
	require.Equal(t, hashtag.FormatJSON, runner.got.OutputFormat)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, knownID, resp["runId"])
	require.NotContains(t, resp, "sinkError")
}

func TestSubmitRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest},
		{"bad format", `{"outputFormat":"xml"}`, nil, http.StatusBadRequest},
		{"unknown mode", `{"mode":"archive"}`, hashtag.ErrUnknownMode, http.StatusBadRequest},
		{"no hashtags", `{"mode":"search"}`, hashtag.ErrNoHashtags, http.StatusBadRequest},
		{"timeout", `{}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"browser", `{}`, errors.New("open browser session: no chrome"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, &fakeRunner{err: tt.err}, Config{})
			rec := do(t, s, http.MethodPost, "/v1/runs", []byte(tt.body), nil)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSubmitRunReportsSinkFailure(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{err: errSink}, Config{})
	rec := do(t, s, http.MethodPost, "/v1/runs", []byte(`{}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, knownID, resp["runId"])
	require.Equal(t, errSink.Error(), resp["sinkError"])
}

func TestGetRunRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{}, Config{})
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/runs", []byte(`{}`), nil).Code)

	rec := do(t, s, http.MethodGet, "/v1/runs/"+knownID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run hashtag.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, knownID, run.ID)
	require.Len(t, run.Records, 1)

	rec = do(t, s, http.MethodGet, "/v1/runs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"records":1`)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+knownID+"/records?format=csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Equal(t, "Hashtag,Views,Posts,Type,Position\ndance,1M views,N/A,searched,\n", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/v1/runs/"+knownID+"/records", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"hashtag":"dance"`)
}

func TestGetRunErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{}, Config{})
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs/not-a-uuid", nil, nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/runs/"+knownID, nil, nil).Code)
}

func TestAPIKeyRequiredWhenEnabled(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{}, Config{AuthEnabled: true, APIKey: "secret"})
	require.Equal(t, http.StatusForbidden, do(t, s, http.MethodGet, "/v1/runs", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/runs", nil, map[string]string{"X-API-Key": "secret"}).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/runs?api_key=secret", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil, nil).Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{panic: true}, Config{})
	rec := do(t, s, http.MethodPost, "/v1/runs", []byte(`{}`), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeRunner{}, Config{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "abc"})
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
