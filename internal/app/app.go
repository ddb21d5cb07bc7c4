// Package app builds the long-lived services shared by the CLI commands from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/clock"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/config"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/dispatcher"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/extract"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fallback"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fetcher/static"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/id/uuid"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/tiktok-hashtag-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sentiment"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink"
	gcssink "github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/gcs"
	localsink "github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/local"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/memory"
	pgsink "github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink/postgres"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/telemetry"
)

// App holds the services a run or the API needs.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Dispatcher *dispatcher.Dispatcher
	Runs       *memory.Store

	closers []func(context.Context) error
}

// New wires every configured component. Optional outputs (GCS, Postgres, Pub/Sub) are
// built only when their settings are present.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a = &App{Config: cfg, Logger: logger, Runs: memory.New(0)}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Tracing.Enabled {
		providers, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: cfg.Tracing.ServiceName,
			ProjectID:   cfg.Tracing.ProjectID,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.closers = append(a.closers, providers.Shutdown)
	}

	browser, err := newBrowser(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := extract.New(extract.Config{
		BaseURL:      cfg.Browser.BaseURL,
		MaxResults:   cfg.Scrape.MaxResults,
		Concurrency:  cfg.Scrape.Concurrency,
		FetchTimeout: cfg.NavTimeout(),
		Selectors:    cfg.Selectors,
	}, ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Browser.RatePerSecond,
		DefaultBurst: cfg.Browser.Burst,
	}), logger.Named("extract"))

	sinks, err := a.buildSinks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var publisher hashtag.Publisher
	if cfg.Output.PubSubTopic != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.Output.PubSubProject, logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		publisher = pub
	}

	a.Dispatcher, err = dispatcher.New(dispatcher.Deps{
		Browser: browser,
		Extractors: func(maxResults int) dispatcher.Extractor {
			return engine.WithMaxResults(maxResults)
		},
		Fabricator: fallback.New(cfg.Scrape.Seed),
		Scorer:     sentiment.New(),
		Sink:       sinks,
		Publisher:  publisher,
		Clock:      clock.System{},
		IDs:        uuid.New(),
	}, dispatcher.Config{Topic: cfg.Output.PubSubTopic}, logger.Named("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("init dispatcher: %w", err)
	}
	return a, nil
}

func newBrowser(cfg config.Config, logger *zap.Logger) (hashtag.Browser, error) {
	switch cfg.Browser.Driver {
	case config.DriverColly:
		return static.New(static.Config{
			UserAgent:     cfg.Browser.UserAgent,
			RespectRobots: cfg.Browser.RespectRobots,
			Timeout:       cfg.NavTimeout(),
		}), nil
	case config.DriverOffline:
		logger.Warn("offline browser driver selected; every run uses fallback data")
		return headless.NewOffline(), nil
	default:
		b, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Browser.MaxParallel,
			UserAgent:         cfg.Browser.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		}, logger.Named("chromedp"))
		if err != nil {
			return nil, fmt.Errorf("init chromedp browser: %w", err)
		}
		return b, nil
	}
}

func (a *App) buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sink.Multi, error) {
	local, err := localsink.New(localsink.Config{Dir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("init local sink: %w", err)
	}
	sinks := []hashtag.Sink{a.Runs, local}

	if cfg.Output.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		gcs, err := gcssink.New(client, gcssink.Config{
			Bucket:      cfg.Output.GCSBucket,
			Prefix:      cfg.Output.GCSPrefix,
			ContentType: cfg.Output.GCSContentType,
		}, logger.Named("gcs"))
		if err != nil {
			return nil, fmt.Errorf("init gcs sink: %w", err)
		}
		sinks = append(sinks, gcs)
	}

	if cfg.Output.PostgresDSN != "" {
		pg, err := pgsink.New(ctx, pgsink.Config{DSN: cfg.Output.PostgresDSN, Table: cfg.Output.PostgresTable})
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pg.Close(); return nil })
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	return sink.NewMulti(logger.Named("sink"), sinks...), nil
}

// Close releases every resource in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
