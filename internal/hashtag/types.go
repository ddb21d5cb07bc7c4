// Package hashtag defines the record schema and collaborator interfaces shared across the scraper.
package hashtag

import "time"

// NotAvailable is the display sentinel used when a statistic could not be read.
const NotAvailable = "N/A"

// Mode selects which extraction path a run takes.
type Mode string

// Supported run modes.
const (
	ModeTrending Mode = "trending"
	ModeSearch   Mode = "search"
	ModeMonitor  Mode = "monitor"
)

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeTrending, ModeSearch, ModeMonitor:
		return true
	default:
		return false
	}
}

// Origin records how a hashtag entered the result set.
type Origin string

// Record provenance values.
const (
	OriginTrending Origin = "trending"
	OriginSearched Origin = "searched"
)

// OutputFormat selects the additional export written next to the dataset.
type OutputFormat string

// Supported output formats.
const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// Classification is the sign-derived sentiment label.
type Classification string

// Sentiment classifications.
const (
	Positive Classification = "positive"
	Negative Classification = "negative"
	Neutral  Classification = "neutral"
)

// Classify maps an aggregate score to its classification.
func Classify(score float64) Classification {
	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

// Record is the unit of work and output of a scrape run.
type Record struct {
	Hashtag          string              `json:"hashtag"`
	ViewsDisplay     string              `json:"viewsDisplay"`
	PostsDisplay     string              `json:"postsDisplay"`
	Position         *int                `json:"position,omitempty"`
	Origin           Origin              `json:"origin"`
	ExtractionError  *string             `json:"extractionError,omitempty"`
	TopVideos        []VideoSummary      `json:"topVideos,omitempty"`
	RelatedHashtags  []string            `json:"relatedHashtags,omitempty"`
	SentimentSummary *SentimentSummary   `json:"sentimentSummary,omitempty"`
	TopInfluencers   []InfluencerSummary `json:"topInfluencers,omitempty"`
	ScrapedAt        time.Time           `json:"scrapedAt"`
	ScrapeMode       Mode                `json:"scrapeMode"`
}

// VideoSummary describes one representative video for a hashtag.
type VideoSummary struct {
	VideoID  string `json:"videoId"`
	Author   string `json:"author"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
	Shares   int64  `json:"shares"`
	Views    int64  `json:"views"`
}

// SentimentSummary aggregates lexicon scores over a comment sample.
type SentimentSummary struct {
	AverageScore       float64        `json:"averageScore"`
	AverageComparative float64        `json:"averageComparative"`
	SampleSize         int            `json:"sampleSize"`
	Classification     Classification `json:"classification"`
}

// InfluencerSummary describes one account posting under a hashtag.
type InfluencerSummary struct {
	Username        string `json:"username"`
	FollowerCount   int64  `json:"followerCount"`
	EngagementScore int    `json:"engagementScore"`
	PostCount       int    `json:"postCount"`
}

// Options carries the per-run knobs consumed by the pipeline.
type Options struct {
	Mode                     Mode
	Hashtags                 []string
	MaxResults               int
	IncludeVideoDetails      bool
	IncludeRelatedHashtags   bool
	IncludeSentimentAnalysis bool
	IncludeInfluencers       bool
	OutputFormat             OutputFormat
}

// DefaultOptions mirrors the documented configuration defaults.
func DefaultOptions() Options {
	return Options{
		Mode:                   ModeTrending,
		MaxResults:             50,
		IncludeVideoDetails:    true,
		IncludeRelatedHashtags: true,
		OutputFormat:           FormatJSON,
	}
}

// Run describes a finished scrape and its records.
type Run struct {
	ID           string       `json:"runId"`
	Mode         Mode         `json:"mode"`
	OutputFormat OutputFormat `json:"outputFormat"`
	StartedAt    time.Time    `json:"startedAt"`
	Records      []Record     `json:"records"`
}

// Fallbacks counts records produced by a fallback path.
func (r Run) Fallbacks() int {
	n := 0
	for _, rec := range r.Records {
		if rec.ExtractionError != nil {
			n++
		}
	}
	return n
}
