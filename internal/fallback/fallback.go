// Package fallback synthesizes substitute data shaped like live extraction results.
package fallback

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

type reference struct {
	tag   string
	views int64
}

// trendingReference is rank-ordered; views never increase down the list.
var trendingReference = []reference{
	{"fyp", 2_100_000_000},
	{"foryou", 1_800_000_000},
	{"viral", 1_500_000_000},
	{"trending", 1_200_000_000},
	{"tiktok", 1_100_000_000},
	{"dance", 950_000_000},
	{"comedy", 800_000_000},
	{"music", 750_000_000},
	{"funny", 700_000_000},
	{"love", 650_000_000},
}

// commentSample is the fixed reference corpus scored by the sentiment stage.
var commentSample = []string{
	"This is amazing!",
	"Love this trend",
	"Not my favorite",
	"So cool and creative",
	"This is boring",
}

// Synthesizer produces fallback and fabricated enrichment data.
// The trending list is deterministic; fabricators draw from the random source.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Synthesizer seeded with seed. A zero seed uses the current time.
func New(seed int64) *Synthesizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewWithRand(rand.New(rand.NewSource(seed))) //nolint:gosec // synthetic data only
}

// NewWithRand returns a Synthesizer drawing from rnd.
func NewWithRand(rnd *rand.Rand) *Synthesizer {
	return &Synthesizer{rnd: rnd}
}

// Trending returns the reference top list truncated or padded to maxResults.
func Trending(maxResults int) []hashtag.Record {
	if maxResults <= 0 {
		return []hashtag.Record{}
	}
	out := make([]hashtag.Record, 0, maxResults)
	views := int64(0)
	for i := 0; i < maxResults; i++ {
		var tag string
		if i < len(trendingReference) {
			tag = trendingReference[i].tag
			views = trendingReference[i].views
		} else {
			tag = "trending" + strconv.Itoa(i+1)
			views = views * 9 / 10
		}
		pos := i + 1
		out = append(out, hashtag.Record{
			Hashtag:      tag,
			ViewsDisplay: hashtag.FormatCount(views),
			PostsDisplay: hashtag.NotAvailable,
			Position:     &pos,
			Origin:       hashtag.OriginTrending,
		})
	}
	return out
}

// Unavailable returns the sentinel record used when a single hashtag lookup failed.
func Unavailable(tag string, err error) hashtag.Record {
	rec := hashtag.Record{
		Hashtag:      tag,
		ViewsDisplay: hashtag.NotAvailable,
		PostsDisplay: hashtag.NotAvailable,
		Origin:       hashtag.OriginSearched,
	}
	if err != nil {
		msg := err.Error()
		rec.ExtractionError = &msg
	}
	return rec
}

// Related derives up to three related hashtags from tag.
func Related(tag string) []string {
	candidates := []string{
		tag + "challenge",
		tag + "trend",
		"viral" + tag,
		tag + "2024",
	}
	return candidates[:3]
}

// CommentSample returns a copy of the fixed comment corpus.
func CommentSample() []string {
	out := make([]string, len(commentSample))
	copy(out, commentSample)
	return out
}

// Videos fabricates representative videos for tag.
func (s *Synthesizer) Videos(tag string) []hashtag.VideoSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	likes := s.rnd.Int63n(100_000)
	return []hashtag.VideoSummary{{
		VideoID:  fmt.Sprintf("7%018d", s.rnd.Int63n(1_000_000_000_000_000_000)),
		Author:   fmt.Sprintf("%s_creator%d", tag, s.rnd.Intn(10_000)),
		Likes:    likes,
		Comments: s.rnd.Int63n(10_000),
		Shares:   s.rnd.Int63n(5_000),
		Views:    likes + s.rnd.Int63n(1_000_000),
	}}
}

// Influencers fabricates top posting accounts for tag.
func (s *Synthesizer) Influencers(tag string) []hashtag.InfluencerSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []hashtag.InfluencerSummary{{
		Username:        fmt.Sprintf("%s_influencer%d", tag, s.rnd.Intn(1_000)),
		FollowerCount:   1_000 + s.rnd.Int63n(10_000_000),
		EngagementScore: 1 + s.rnd.Intn(10),
		PostCount:       1 + s.rnd.Intn(50),
	}}
}
