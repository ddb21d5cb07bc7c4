// Package dispatcher validates run options and drives one scrape run end to end.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/enrich"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
)

// Run status labels.
const (
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusSinkFailed = "sink_failed"
)

const defaultMaxResults = 50

// Extractor produces the raw record set for a mode.
type Extractor interface {
	Extract(ctx context.Context, mode hashtag.Mode, targets []string, pages hashtag.PageFetcher) ([]hashtag.Record, error)
}

// ExtractorFactory returns an Extractor capped at maxResults trending entries.
type ExtractorFactory func(maxResults int) Extractor

// Deps bundles the collaborators of a Dispatcher. Sink and Publisher are optional.
type Deps struct {
	Browser    hashtag.Browser
	Extractors ExtractorFactory
	Fabricator enrich.Fabricator
	Scorer     enrich.Scorer
	Sink       hashtag.Sink
	Publisher  hashtag.Publisher
	Clock      hashtag.Clock
	IDs        hashtag.IDGenerator
}

// Config holds dispatcher settings that do not vary per run.
type Config struct {
	Topic string
}

// Summary is the run notification payload.
type Summary struct {
	RunID     string       `json:"run_id"`
	Mode      hashtag.Mode `json:"mode"`
	Records   int          `json:"records"`
	Fallbacks int          `json:"fallbacks"`
	ScrapedAt time.Time    `json:"scraped_at"`
}

// Dispatcher routes a run to its extraction strategy and hands the result on.
type Dispatcher struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates a Dispatcher.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if deps.Browser == nil {
		return nil, errors.New("dispatcher: browser is required")
	}
	if deps.Extractors == nil {
		return nil, errors.New("dispatcher: extractor factory is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("dispatcher: clock is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("dispatcher: id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/JakeFAU/tiktok-hashtag-scraper/internal/dispatcher"),
	}, nil
}

// Validate normalizes opts in place and reports configuration errors.
func Validate(opts *hashtag.Options) error {
	if opts == nil {
		return hashtag.ErrMissingConfig
	}
	if !opts.Mode.Valid() {
		return fmt.Errorf("%w: %q", hashtag.ErrUnknownMode, opts.Mode)
	}
	opts.Hashtags = hashtag.NormalizeAll(opts.Hashtags)
	if opts.Mode != hashtag.ModeTrending && len(opts.Hashtags) == 0 {
		return fmt.Errorf("%w: mode %s", hashtag.ErrNoHashtags, opts.Mode)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = hashtag.FormatJSON
	}
	return nil
}

// Run executes one scrape. Configuration errors are returned before any page is fetched.
// A sink failure is returned alongside the completed run.
func (d *Dispatcher) Run(ctx context.Context, opts *hashtag.Options) (hashtag.Run, error) {
	if err := Validate(opts); err != nil {
		mode := "unknown"
		if opts != nil {
			mode = string(opts.Mode)
		}
		metrics.ObserveRun(mode, StatusFailed)
		return hashtag.Run{}, err
	}
	cfg := *opts

	runID, err := d.deps.IDs.NewID()
	if err != nil {
		metrics.ObserveRun(string(cfg.Mode), StatusFailed)
		return hashtag.Run{}, fmt.Errorf("run id: %w", err)
	}
	logger := d.logger.With(zap.String("run_id", runID), zap.String("mode", string(cfg.Mode)))

	ctx, span := d.tracer.Start(ctx, "dispatcher.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("mode", string(cfg.Mode)),
		attribute.Int("hashtags", len(cfg.Hashtags)),
	))
	defer span.End()

	run := hashtag.Run{ID: runID, Mode: cfg.Mode, OutputFormat: cfg.OutputFormat, StartedAt: d.deps.Clock.Now()}
	logger.Info("run started", zap.Strings("hashtags", cfg.Hashtags), zap.Int("max_results", cfg.MaxResults))

	records, err := d.collect(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveRun(string(cfg.Mode), StatusFailed)
		return hashtag.Run{}, err
	}

	records = enrich.New(cfg, d.deps.Fabricator, d.deps.Scorer, logger).Run(ctx, records)

	scrapedAt := d.deps.Clock.Now()
	for i := range records {
		records[i].ScrapedAt = scrapedAt
		records[i].ScrapeMode = cfg.Mode
	}
	run.Records = records
	d.observe(run)

	status := StatusSucceeded
	var sinkErr error
	if d.deps.Sink != nil {
		if sinkErr = d.deps.Sink.Append(ctx, run); sinkErr != nil {
			status = StatusSinkFailed
			span.RecordError(sinkErr)
			logger.Warn("sink append failed", zap.Error(sinkErr))
			sinkErr = fmt.Errorf("sink append: %w", sinkErr)
		}
	}
	d.publish(ctx, logger, run, scrapedAt)

	metrics.ObserveRun(string(cfg.Mode), status)
	logger.Info("run finished",
		zap.Int("records", len(run.Records)),
		zap.Int("fallbacks", run.Fallbacks()),
		zap.String("status", status),
	)
	return run, sinkErr
}

// collect opens a browsing session for the extraction and always releases it.
func (d *Dispatcher) collect(ctx context.Context, cfg hashtag.Options) (records []hashtag.Record, err error) {
	session, err := d.deps.Browser.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			d.logger.Warn("close browser session", zap.Error(cerr))
		}
	}()

	var targets []string
	if cfg.Mode != hashtag.ModeTrending {
		targets = cfg.Hashtags
	}
	records, err = d.deps.Extractors(cfg.MaxResults).Extract(ctx, cfg.Mode, targets, session)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return records, nil
}

func (d *Dispatcher) observe(run hashtag.Run) {
	byOrigin := make(map[hashtag.Origin]int)
	for _, rec := range run.Records {
		byOrigin[rec.Origin]++
	}
	for origin, n := range byOrigin {
		metrics.ObserveRecords(string(run.Mode), string(origin), n)
	}
}

func (d *Dispatcher) publish(ctx context.Context, logger *zap.Logger, run hashtag.Run, scrapedAt time.Time) {
	if d.deps.Publisher == nil || d.cfg.Topic == "" {
		return
	}
	summary := Summary{
		RunID:     run.ID,
		Mode:      run.Mode,
		Records:   len(run.Records),
		Fallbacks: run.Fallbacks(),
		ScrapedAt: scrapedAt,
	}
	msgID, err := d.deps.Publisher.Publish(ctx, d.cfg.Topic, summary)
	if err != nil {
		logger.Warn("publish run summary failed", zap.String("topic", d.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("published run summary", zap.String("topic", d.cfg.Topic), zap.String("message_id", msgID))
}
