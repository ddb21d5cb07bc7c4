package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/config"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

type runFlags struct {
	mode         string
	hashtags     []string
	maxResults   int
	outputFormat string
	outputDir    string
	driver       string
	videoDetails bool
	related      bool
	sentiment    bool
	influencers  bool
	seed         int64
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Performs a single scrape run",
		Long: `Runs one scrape in the configured mode and writes the records to every
configured output. Flags override the config file and environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := resolveState(cmd.Context())
			if err != nil {
				return err
			}
			cfg := st.cfg
			if err := f.apply(cmd, &cfg); err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, st.logger)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.mode, "mode", "", "trending, search or monitor")
	fs.StringSliceVar(&f.hashtags, "hashtags", nil, "hashtags to look up (search and monitor)")
	fs.IntVar(&f.maxResults, "max-results", 0, "cap on trending records")
	fs.StringVar(&f.outputFormat, "output-format", "", "json or csv")
	fs.StringVar(&f.outputDir, "output-dir", "", "directory for the local dataset")
	fs.StringVar(&f.driver, "driver", "", "chromedp, colly or offline")
	fs.BoolVar(&f.videoDetails, "video-details", false, "attach top videos")
	fs.BoolVar(&f.related, "related", false, "attach related hashtags")
	fs.BoolVar(&f.sentiment, "sentiment", false, "attach a sentiment summary")
	fs.BoolVar(&f.influencers, "influencers", false, "attach top influencers")
	fs.Int64Var(&f.seed, "seed", 0, "seed for synthetic enrichment data")
	return cmd
}

// apply copies explicitly set flags onto cfg and revalidates it.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("mode") {
		cfg.Scrape.Mode = f.mode
	}
	if fs.Changed("hashtags") {
		cfg.Scrape.Hashtags = hashtag.NormalizeAll(f.hashtags)
	}
	if fs.Changed("max-results") {
		cfg.Scrape.MaxResults = f.maxResults
	}
	if fs.Changed("output-format") {
		cfg.Scrape.OutputFormat = f.outputFormat
	}
	if fs.Changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if fs.Changed("driver") {
		cfg.Browser.Driver = f.driver
	}
	if fs.Changed("video-details") {
		cfg.Scrape.IncludeVideoDetails = f.videoDetails
	}
	if fs.Changed("related") {
		cfg.Scrape.IncludeRelatedHashtags = f.related
	}
	if fs.Changed("sentiment") {
		cfg.Scrape.IncludeSentimentAnalysis = f.sentiment
	}
	if fs.Changed("influencers") {
		cfg.Scrape.IncludeInfluencers = f.influencers
	}
	if fs.Changed("seed") {
		cfg.Scrape.Seed = f.seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()

	opts := cfg.Options()
	run, err := a.Dispatcher.Run(ctx, &opts)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("run command finished",
		zap.String("run_id", run.ID),
		zap.Int("records", len(run.Records)),
		zap.Int("fallbacks", run.Fallbacks()),
	)
	return nil
}
