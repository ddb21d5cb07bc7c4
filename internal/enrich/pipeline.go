// Package enrich applies the optional enrichment stages to extracted records.
package enrich

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
)

// Enricher writes exactly one enrichment field on a record.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, rec *hashtag.Record) error
}

// Stage is an Enricher gated by its configuration flag.
type Stage struct {
	Enricher Enricher
	Enabled  bool
}

// DefaultConcurrency bounds how many records a stage enriches at once.
const DefaultConcurrency = 8

// Pipeline runs stages in order over the full record set.
type Pipeline struct {
	stages []Stage
	limit  int
	logger *zap.Logger
	tracer trace.Tracer
}

// NewPipeline builds a pipeline from explicit stages.
func NewPipeline(stages []Stage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		stages: stages,
		limit:  DefaultConcurrency,
		logger: logger,
		tracer: otel.Tracer("github.com/JakeFAU/tiktok-hashtag-scraper/internal/enrich"),
	}
}

// New builds the standard pipeline: video details, related hashtags, sentiment, influencers.
func New(opts hashtag.Options, fab Fabricator, scorer Scorer, logger *zap.Logger) *Pipeline {
	return NewPipeline([]Stage{
		{Enricher: NewVideoDetails(fab), Enabled: opts.IncludeVideoDetails},
		{Enricher: NewRelatedHashtags(), Enabled: opts.IncludeRelatedHashtags},
		{Enricher: NewSentiment(scorer, nil), Enabled: opts.IncludeSentimentAnalysis},
		{Enricher: NewInfluencers(fab), Enabled: opts.IncludeInfluencers},
	}, logger)
}

// WithConcurrency sets the per-stage fan-out bound. Non-positive n keeps the current bound.
func (p *Pipeline) WithConcurrency(n int) *Pipeline {
	if n > 0 {
		p.limit = n
	}
	return p
}

// Stages returns the configured stages in execution order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Run applies every enabled stage to every record in place and returns records.
// A failure on one record leaves that stage's field unset and never stops the stage.
func (p *Pipeline) Run(ctx context.Context, records []hashtag.Record) []hashtag.Record {
	for _, stage := range p.stages {
		if !stage.Enabled || stage.Enricher == nil {
			continue
		}
		p.runStage(ctx, stage.Enricher, records)
	}
	return records
}

func (p *Pipeline) runStage(ctx context.Context, e Enricher, records []hashtag.Record) {
	ctx, span := p.tracer.Start(ctx, "enrich."+e.Name(), trace.WithAttributes(
		attribute.Int("records", len(records)),
	))
	defer span.End()

	// Each task writes only records[i], so results stay in input order.
	var failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i := range records {
		g.Go(func() error {
			if err := apply(ctx, e, &records[i]); err != nil {
				failures.Add(1)
				metrics.ObserveStageFailure(e.Name())
				p.logger.Warn("enrichment failed for record; continuing",
					zap.String("stage", e.Name()),
					zap.String("hashtag", records[i].Hashtag),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait() // failures are recorded per record
	n := int(failures.Load())
	span.SetAttributes(attribute.Int("failures", n))
	p.logger.Debug("enrichment stage complete",
		zap.String("stage", e.Name()),
		zap.Int("records", len(records)),
		zap.Int("failures", n),
	)
}

// apply enriches a copy and commits it only on success.
func apply(ctx context.Context, e Enricher, rec *hashtag.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", e.Name(), r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", e.Name(), err)
	}
	working := *rec
	if err := e.Enrich(ctx, &working); err != nil {
		return err
	}
	*rec = working
	return nil
}
