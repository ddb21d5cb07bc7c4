// Package sentiment scores short texts against a word valence lexicon.
package sentiment

import (
	"strings"
	"unicode"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// Result is the score of one text.
type Result struct {
	Score       int
	Comparative float64
	Tokens      []string
	Positive    []string
	Negative    []string
}

// Analyzer scores text using a word valence lexicon.
type Analyzer struct {
	lexicon map[string]int
}

// New returns an Analyzer over the built-in lexicon.
func New() *Analyzer {
	return &Analyzer{lexicon: afinn}
}

// NewWithLexicon returns an Analyzer over a caller-supplied lexicon.
func NewWithLexicon(lexicon map[string]int) *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

// Analyze scores text. A lexicon hit directly preceded by a negator flips sign.
// Comparative is the score divided by the token count.
func (a *Analyzer) Analyze(text string) Result {
	tokens := Tokenize(text)
	res := Result{Tokens: tokens}
	for i, tok := range tokens {
		v, ok := a.lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if _, neg := negators[tokens[i-1]]; neg {
				v = -v
			}
		}
		res.Score += v
		switch {
		case v > 0:
			res.Positive = append(res.Positive, tok)
		case v < 0:
			res.Negative = append(res.Negative, tok)
		}
	}
	if len(tokens) > 0 {
		res.Comparative = float64(res.Score) / float64(len(tokens))
	}
	return res
}

// Summarize scores every sample and averages score and comparative.
func (a *Analyzer) Summarize(samples []string) hashtag.SentimentSummary {
	if len(samples) == 0 {
		return hashtag.SentimentSummary{Classification: hashtag.Neutral}
	}
	var totalScore, totalComparative float64
	for _, s := range samples {
		r := a.Analyze(s)
		totalScore += float64(r.Score)
		totalComparative += r.Comparative
	}
	n := float64(len(samples))
	avg := totalScore / n
	return hashtag.SentimentSummary{
		AverageScore:       avg,
		AverageComparative: totalComparative / n,
		SampleSize:         len(samples),
		Classification:     hashtag.Classify(avg),
	}
}

// Tokenize lowercases text, drops punctuation other than apostrophes and splits on whitespace.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			return unicode.ToLower(r)
		case r == '’':
			return '\''
		default:
			return ' '
		}
	}, text)
	return strings.Fields(cleaned)
}
