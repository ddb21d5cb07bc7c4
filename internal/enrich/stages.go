package enrich

import (
	"context"
	"errors"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/fallback"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// Stage names, also used as metric labels.
const (
	StageVideoDetails    = "video_details"
	StageRelatedHashtags = "related_hashtags"
	StageSentiment       = "sentiment"
	StageInfluencers     = "influencers"
)

var errEmptyHashtag = errors.New("record has no hashtag")

// Fabricator produces secondary data for a hashtag.
type Fabricator interface {
	Videos(tag string) []hashtag.VideoSummary
	Influencers(tag string) []hashtag.InfluencerSummary
}

// Scorer aggregates sentiment over a text sample.
type Scorer interface {
	Summarize(samples []string) hashtag.SentimentSummary
}

// VideoDetails sets TopVideos.
type VideoDetails struct {
	fab Fabricator
}

// NewVideoDetails returns the video details stage.
func NewVideoDetails(fab Fabricator) *VideoDetails {
	return &VideoDetails{fab: fab}
}

// Name implements Enricher.
func (*VideoDetails) Name() string { return StageVideoDetails }

// Enrich implements Enricher.
func (s *VideoDetails) Enrich(_ context.Context, rec *hashtag.Record) error {
	if rec.Hashtag == "" {
		return errEmptyHashtag
	}
	rec.TopVideos = s.fab.Videos(rec.Hashtag)
	return nil
}

// RelatedHashtags sets RelatedHashtags from the record's own hashtag.
type RelatedHashtags struct{}

// NewRelatedHashtags returns the related hashtags stage.
func NewRelatedHashtags() *RelatedHashtags {
	return &RelatedHashtags{}
}

// Name implements Enricher.
func (*RelatedHashtags) Name() string { return StageRelatedHashtags }

// Enrich implements Enricher.
func (*RelatedHashtags) Enrich(_ context.Context, rec *hashtag.Record) error {
	if rec.Hashtag == "" {
		return errEmptyHashtag
	}
	rec.RelatedHashtags = fallback.Related(rec.Hashtag)
	return nil
}

// Sentiment sets SentimentSummary from a fixed comment sample.
type Sentiment struct {
	scorer Scorer
	sample []string
}

// NewSentiment returns the sentiment stage. A nil sample uses the reference corpus.
func NewSentiment(scorer Scorer, sample []string) *Sentiment {
	if sample == nil {
		sample = fallback.CommentSample()
	}
	return &Sentiment{scorer: scorer, sample: sample}
}

// Name implements Enricher.
func (*Sentiment) Name() string { return StageSentiment }

// Enrich implements Enricher.
func (s *Sentiment) Enrich(_ context.Context, rec *hashtag.Record) error {
	if s.scorer == nil {
		return errors.New("no sentiment scorer configured")
	}
	summary := s.scorer.Summarize(s.sample)
	rec.SentimentSummary = &summary
	return nil
}

// Influencers sets TopInfluencers.
type Influencers struct {
	fab Fabricator
}

// NewInfluencers returns the influencer identification stage.
func NewInfluencers(fab Fabricator) *Influencers {
	return &Influencers{fab: fab}
}

// Name implements Enricher.
func (*Influencers) Name() string { return StageInfluencers }

// Enrich implements Enricher.
func (s *Influencers) Enrich(_ context.Context, rec *hashtag.Record) error {
	if rec.Hashtag == "" {
		return errEmptyHashtag
	}
	rec.TopInfluencers = s.fab.Influencers(rec.Hashtag)
	return nil
}
