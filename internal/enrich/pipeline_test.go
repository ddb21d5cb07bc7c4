package enrich

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fallback"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sentiment"
)

func baseRecords() []hashtag.Record {
	pos := 1
	return []hashtag.Record{
		{Hashtag: "dance", ViewsDisplay: "15.2B", PostsDisplay: hashtag.NotAvailable, Position: &pos, Origin: hashtag.OriginTrending},
		{Hashtag: "fyp", ViewsDisplay: hashtag.NotAvailable, PostsDisplay: hashtag.NotAvailable, Origin: hashtag.OriginSearched},
	}
}

func allOptions(video, related, sent, influencers bool) hashtag.Options {
	return hashtag.Options{
		IncludeVideoDetails:      video,
		IncludeRelatedHashtags:   related,
		IncludeSentimentAnalysis: sent,
		IncludeInfluencers:       influencers,
	}
}

func newTestPipeline(opts hashtag.Options) *Pipeline {
	return New(opts, fallback.New(1), sentiment.New(), zap.NewNop())
}

func TestAllStagesDisabledAddsNothing(t *testing.T) {
	t.Parallel()

	records := newTestPipeline(allOptions(false, false, false, false)).Run(context.Background(), baseRecords())
	require.Equal(t, baseRecords(), records)
	for _, rec := range records {
		require.Nil(t, rec.TopVideos)
		require.Nil(t, rec.RelatedHashtags)
		require.Nil(t, rec.SentimentSummary)
		require.Nil(t, rec.TopInfluencers)
	}
}

func TestSingleFlagAddsOnlyItsField(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		opts  hashtag.Options
		check func(t *testing.T, rec hashtag.Record)
	}{
		{"video", allOptions(true, false, false, false), func(t *testing.T, rec hashtag.Record) {
			require.NotEmpty(t, rec.TopVideos)
			require.Nil(t, rec.RelatedHashtags)
			require.Nil(t, rec.SentimentSummary)
			require.Nil(t, rec.TopInfluencers)
		}},
		{"related", allOptions(false, true, false, false), func(t *testing.T, rec hashtag.Record) {
			require.Nil(t, rec.TopVideos)
			require.NotEmpty(t, rec.RelatedHashtags)
			require.Nil(t, rec.SentimentSummary)
			require.Nil(t, rec.TopInfluencers)
		}},
		{"sentiment", allOptions(false, false, true, false), func(t *testing.T, rec hashtag.Record) {
			require.Nil(t, rec.TopVideos)
			require.Nil(t, rec.RelatedHashtags)
			require.NotNil(t, rec.SentimentSummary)
			require.Nil(t, rec.TopInfluencers)
		}},
		{"influencers", allOptions(false, false, false, true), func(t *testing.T, rec hashtag.Record) {
			require.Nil(t, rec.TopVideos)
			require.Nil(t, rec.RelatedHashtags)
			require.Nil(t, rec.SentimentSummary)
			require.NotEmpty(t, rec.TopInfluencers)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			records := newTestPipeline(tc.opts).Run(context.Background(), baseRecords())
			require.Len(t, records, 2)
			for i, rec := range records {
				tc.check(t, rec)
				base := baseRecords()[i]
				require.Equal(t, base.Hashtag, rec.Hashtag)
				require.Equal(t, base.ViewsDisplay, rec.ViewsDisplay)
				require.Equal(t, base.Origin, rec.Origin)
				require.Equal(t, base.Position, rec.Position)
			}
		})
	}
}

func TestRelatedHashtagsDeriveFromOwnTag(t *testing.T) {
	t.Parallel()

	records := newTestPipeline(allOptions(false, true, false, false)).Run(context.Background(), baseRecords())
	for _, rec := range records {
		require.LessOrEqual(t, len(rec.RelatedHashtags), 3)
		require.Equal(t, []string{rec.Hashtag + "challenge", rec.Hashtag + "trend", "viral" + rec.Hashtag}, rec.RelatedHashtags)
	}
}

func TestSentimentUsesFixedSample(t *testing.T) {
	t.Parallel()

	sample := []string{"This is amazing, love it!", "So funny and creative", "I don't like this", "This is boring", "Best video ever"}
	p := NewPipeline([]Stage{{Enricher: NewSentiment(sentiment.New(), sample), Enabled: true}}, nil)
	records := p.Run(context.Background(), baseRecords())
	for _, rec := range records {
		require.NotNil(t, rec.SentimentSummary)
		require.InDelta(t, 2.2, rec.SentimentSummary.AverageScore, 1e-9)
		require.InDelta(t, 0.48, rec.SentimentSummary.AverageComparative, 1e-9)
		require.Equal(t, 5, rec.SentimentSummary.SampleSize)
		require.Equal(t, hashtag.Positive, rec.SentimentSummary.Classification)
	}
}

func TestSentimentDefaultCorpus(t *testing.T) {
	t.Parallel()

	p := NewPipeline([]Stage{{Enricher: NewSentiment(sentiment.New(), nil), Enabled: true}}, nil)
	records := p.Run(context.Background(), baseRecords())
	for _, rec := range records {
		require.NotNil(t, rec.SentimentSummary)
		require.InDelta(t, 1.8, rec.SentimentSummary.AverageScore, 1e-9)
		require.InDelta(t, 0.55, rec.SentimentSummary.AverageComparative, 1e-9)
		require.Equal(t, 5, rec.SentimentSummary.SampleSize)
		require.Equal(t, hashtag.Positive, rec.SentimentSummary.Classification)
	}
}

type flakyFabricator struct {
	fail string
}

func (f flakyFabricator) Videos(tag string) []hashtag.VideoSummary {
	if tag == f.fail {
		panic("video source unavailable")
	}
	return []hashtag.VideoSummary{{VideoID: "1", Author: "a"}}
}

func (f flakyFabricator) Influencers(tag string) []hashtag.InfluencerSummary {
	return []hashtag.InfluencerSummary{{Username: tag, EngagementScore: 1, PostCount: 1}}
}

func TestStageFailureIsRecordScoped(t *testing.T) {
	t.Parallel()

	p := New(allOptions(true, true, false, true), flakyFabricator{fail: "dance"}, sentiment.New(), nil)
	records := p.Run(context.Background(), baseRecords())

	require.Nil(t, records[0].TopVideos, "failed record keeps field unset")
	require.NotEmpty(t, records[0].RelatedHashtags, "later stages still run for the failed record")
	require.NotEmpty(t, records[0].TopInfluencers)

	require.NotEmpty(t, records[1].TopVideos)
	require.NotEmpty(t, records[1].RelatedHashtags)
}

type partialEnricher struct{}

func (partialEnricher) Name() string { return "partial" }

func (partialEnricher) Enrich(_ context.Context, rec *hashtag.Record) error {
	rec.RelatedHashtags = []string{"half-written"}
	return context.DeadlineExceeded
}

func TestFailedEnrichDoesNotLeakPartialWrites(t *testing.T) {
	t.Parallel()

	p := NewPipeline([]Stage{{Enricher: partialEnricher{}, Enabled: true}}, nil)
	records := p.Run(context.Background(), baseRecords())
	for _, rec := range records {
		require.Nil(t, rec.RelatedHashtags)
	}
}

func TestEmptyHashtagFailsStage(t *testing.T) {
	t.Parallel()

	records := []hashtag.Record{{Hashtag: ""}, {Hashtag: "ok"}}
	newTestPipeline(allOptions(true, true, false, true)).Run(context.Background(), records)
	require.Nil(t, records[0].TopVideos)
	require.Nil(t, records[0].RelatedHashtags)
	require.Nil(t, records[0].TopInfluencers)
	require.NotEmpty(t, records[1].TopVideos)
}

func TestCanceledContextLeavesFieldsUnset(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := newTestPipeline(allOptions(true, true, true, true)).Run(ctx, baseRecords())
	require.Nil(t, records[0].TopVideos)
	require.Nil(t, records[0].SentimentSummary)
}

func TestStandardStageOrder(t *testing.T) {
	t.Parallel()

	stages := newTestPipeline(allOptions(true, true, true, true)).Stages()
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Enricher.Name())
	}
	require.Equal(t, []string{StageVideoDetails, StageRelatedHashtags, StageSentiment, StageInfluencers}, names)
}

func TestSentimentWithoutScorerFails(t *testing.T) {
	t.Parallel()

	rec := hashtag.Record{Hashtag: "x"}
	require.Error(t, NewSentiment(nil, nil).Enrich(context.Background(), &rec))
}

type slowEnricher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (*slowEnricher) Name() string { return "slow" }

func (e *slowEnricher) Enrich(_ context.Context, rec *hashtag.Record) error {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	rec.RelatedHashtags = []string{rec.Hashtag + "-done"}
	return nil
}

func TestStageFansOutAndKeepsOrder(t *testing.T) {
	t.Parallel()

	records := make([]hashtag.Record, 20)
	for i := range records {
		records[i].Hashtag = fmt.Sprintf("tag%d", i)
	}
	e := &slowEnricher{}
	NewPipeline([]Stage{{Enricher: e, Enabled: true}}, nil).WithConcurrency(4).Run(context.Background(), records)

	for i, rec := range records {
		require.Equal(t, []string{fmt.Sprintf("tag%d-done", i)}, rec.RelatedHashtags)
	}
	require.Greater(t, e.peak.Load(), int32(1))
	require.LessOrEqual(t, e.peak.Load(), int32(4))
}
