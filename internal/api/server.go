package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	runid "github.com/JakeFAU/tiktok-hashtag-scraper/internal/id/uuid"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/memory"
)

const defaultRunTimeout = 5 * time.Minute

// Runner executes one scrape run.
type Runner interface {
	Run(ctx context.Context, opts *hashtag.Options) (hashtag.Run, error)
}

// RunStore reads finished runs back.
type RunStore interface {
	Get(ctx context.Context, id string) (hashtag.Run, error)
	List(ctx context.Context) []hashtag.Run
}

// Config controls API behavior.
type Config struct {
	AuthEnabled    bool
	APIKey         string
	MetricsEnabled bool
	RunTimeout     time.Duration
	// Defaults fill any option a request leaves out.
	Defaults hashtag.Options
}

// Server wires HTTP handlers to the dispatcher and run registry.
type Server struct {
	router chi.Router
	runner Runner
	runs   RunStore
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, runs RunStore, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	s := &Server{runner: runner, runs: runs, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RunTimeout + 10*time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRun)
			r.Get("/", s.listRuns)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.getRun)
				r.Get("/records", s.getRecords)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the traced router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "hashtag-api")
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil || s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type runRequest struct {
	Mode                     *string  `json:"mode"`
	Hashtags                 []string `json:"hashtags"`
	MaxResults               *int     `json:"maxResults"`
	IncludeVideoDetails      *bool    `json:"includeVideoDetails"`
	IncludeRelatedHashtags   *bool    `json:"includeRelatedHashtags"`
	IncludeSentimentAnalysis *bool    `json:"includeSentimentAnalysis"`
	IncludeInfluencers       *bool    `json:"includeInfluencers"`
	OutputFormat             *string  `json:"outputFormat"`
}

func (req runRequest) options(def hashtag.Options) hashtag.Options {
	opts := def
	opts.Hashtags = append([]string(nil), def.Hashtags...)
	if req.Mode != nil {
		opts.Mode = hashtag.Mode(*req.Mode)
	}
	if req.Hashtags != nil {
		opts.Hashtags = req.Hashtags
	}
	opts.MaxResults = valueOrDefault(req.MaxResults, def.MaxResults)
	opts.IncludeVideoDetails = valueOrDefault(req.IncludeVideoDetails, def.IncludeVideoDetails)
	opts.IncludeRelatedHashtags = valueOrDefault(req.IncludeRelatedHashtags, def.IncludeRelatedHashtags)
	opts.IncludeSentimentAnalysis = valueOrDefault(req.IncludeSentimentAnalysis, def.IncludeSentimentAnalysis)
	opts.IncludeInfluencers = valueOrDefault(req.IncludeInfluencers, def.IncludeInfluencers)
	if req.OutputFormat != nil {
		opts.OutputFormat = hashtag.OutputFormat(*req.OutputFormat)
	}
	return opts
}

type runResponse struct {
	hashtag.Run
	SinkError string `json:"sinkError,omitempty"`
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts := req.options(s.cfg.Defaults)
	switch opts.OutputFormat {
	case hashtag.FormatJSON, hashtag.FormatCSV, "":
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported output format %q", opts.OutputFormat))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()
	run, err := s.runner.Run(ctx, &opts)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, runResponse{Run: run})
	case isConfigError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case run.ID != "":
		// Records were produced; only a sink failed.
		s.writeJSON(w, http.StatusOK, runResponse{Run: run, SinkError: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func isConfigError(err error) bool {
	return errors.Is(err, hashtag.ErrMissingConfig) ||
		errors.Is(err, hashtag.ErrUnknownMode) ||
		errors.Is(err, hashtag.ErrNoHashtags)
}

type runListItem struct {
	ID        string       `json:"runId"`
	Mode      hashtag.Mode `json:"mode"`
	StartedAt time.Time    `json:"startedAt"`
	Records   int          `json:"records"`
	Fallbacks int          `json:"fallbacks"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.List(r.Context())
	out := make([]runListItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, runListItem{
			ID:        run.ID,
			Mode:      run.Mode,
			StartedAt: run.StartedAt,
			Records:   len(run.Records),
			Fallbacks: run.Fallbacks(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (hashtag.Run, bool) {
	id := chi.URLParam(r, "run_id")
	if !runid.Valid(id) {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return hashtag.Run{}, false
	}
	run, err := s.runs.Get(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return hashtag.Run{}, false
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return hashtag.Run{}, false
	}
	return run, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.lookup(w, r); ok {
		s.writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") != string(hashtag.FormatCSV) {
		s.writeJSON(w, http.StatusOK, map[string]any{"records": run.Records})
		return
	}
	data, err := sink.CSV(run)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.ID+".csv"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write csv failed", zap.Error(err))
	}
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", requestID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
