// Package sentiment turns a batch of reviews into a structured sentiment
// analysis using keyword and theme tables.
package sentiment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

const (
	maxStrengths       = 5
	maxPainPoints      = 6
	maxKeyPhrases      = 10
	maxQuotes          = 3
	minQuoteLength     = 40
	maxQuoteLength     = 280
	maxRecommendations = 8
	maxPhraseNudges    = 3
	minTokenLength     = 3
)

// Synthesizer computes SentimentAnalysis values from reviews.
type Synthesizer struct {
	tables Tables
}

// New constructs a Synthesizer over the given tables.
func New(tables Tables) *Synthesizer {
	return &Synthesizer{tables: tables}
}

// NewDefault constructs a Synthesizer over DefaultTables.
func NewDefault() *Synthesizer {
	return New(DefaultTables())
}

// Summarize analyses reviews. query is echoed into the result.
func (s *Synthesizer) Summarize(reviews []crawler.Review, query string) crawler.SentimentAnalysis {
	var positive, negative []crawler.Review
	for _, r := range reviews {
		if r.VotedUp {
			positive = append(positive, r)
		} else {
			negative = append(negative, r)
		}
	}
	total := len(reviews)

	score, percent := 0.0, 0.0
	if total > 0 {
		ratio := float64(len(positive)) / float64(total)
		score = crawler.Round((ratio*2-1)*100, 2)
		percent = crawler.Round(ratio*100, 2)
	}

	strengths := topThemes(countThemes(positive, s.tables.PositiveThemes), maxStrengths)
	painPoints := topThemes(countThemes(negative, s.tables.NegativeThemes), maxPainPoints)
	positivePhrases := s.keyPhrases(positive, maxKeyPhrases)
	negativePhrases := s.keyPhrases(negative, maxKeyPhrases)

	return crawler.SentimentAnalysis{
		Query:                query,
		SentimentScore:       score,
		TotalReviewsAnalyzed: total,
		PositiveCount:        len(positive),
		NegativeCount:        len(negative),
		PositivePercent:      percent,
		Strengths:            strengths,
		PainPoints:           painPoints,
		RecurringFeedback: crawler.RecurringFeedback{
			PositiveThemes:     strengths,
			NegativeThemes:     painPoints,
			PositiveKeyPhrases: positivePhrases,
			NegativeKeyPhrases: negativePhrases,
		},
		RepresentativeQuotes: crawler.RepresentativeQuotes{
			Positive: representativeQuotes(positive, maxQuotes),
			Negative: representativeQuotes(negative, maxQuotes),
		},
		ActionableRecommendations: s.recommendations(painPoints, negativePhrases),
		Summary: crawler.SentimentSummary{
			Label:        Label(score),
			Highlights:   describe(strengths),
			Improvements: describe(painPoints),
		},
	}
}

// Label maps a sentiment score onto its headline label.
func Label(score float64) string {
	switch {
	case score >= 60:
		return "Very Positive"
	case score >= 25:
		return "Mostly Positive"
	case score > -25:
		return "Mixed"
	case score > -60:
		return "Mostly Negative"
	default:
		return "Very Negative"
	}
}

// Normalize lowercases text, replaces everything but ASCII letters and digits
// with spaces and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (s *Synthesizer) tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	words := strings.Split(normalized, " ")
	out := words[:0]
	for _, w := range words {
		if len(w) < minTokenLength {
			continue
		}
		if _, stop := s.tables.StopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func countThemes(reviews []crawler.Review, themes []Theme) []crawler.ThemeCount {
	counts := make([]crawler.ThemeCount, len(themes))
	for i, theme := range themes {
		counts[i].Name = theme.Name
	}
	for _, r := range reviews {
		text := Normalize(r.Text)
		for i, theme := range themes {
			for _, trigger := range theme.Triggers {
				if strings.Contains(text, trigger) {
					counts[i].Count++
					break
				}
			}
		}
	}
	return counts
}

func topThemes(counts []crawler.ThemeCount, limit int) []crawler.ThemeCount {
	out := make([]crawler.ThemeCount, 0, len(counts))
	for _, c := range counts {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Synthesizer) keyPhrases(reviews []crawler.Review, limit int) []crawler.KeyPhrase {
	index := map[string]int{}
	var phrases []crawler.KeyPhrase
	for _, r := range reviews {
		for _, word := range s.tokenize(r.Text) {
			if i, ok := index[word]; ok {
				phrases[i].Count++
				continue
			}
			index[word] = len(phrases)
			phrases = append(phrases, crawler.KeyPhrase{Phrase: word, Count: 1})
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool { return phrases[i].Count > phrases[j].Count })
	if len(phrases) > limit {
		phrases = phrases[:limit]
	}
	if phrases == nil {
		return []crawler.KeyPhrase{}
	}
	return phrases
}

func representativeQuotes(reviews []crawler.Review, limit int) []crawler.Quote {
	candidates := make([]crawler.Review, 0, len(reviews))
	for _, r := range reviews {
		if utf8.RuneCountInString(r.Text) > minQuoteLength {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].WeightedVoteScore > candidates[j].WeightedVoteScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	quotes := make([]crawler.Quote, 0, len(candidates))
	for _, r := range candidates {
		quotes = append(quotes, crawler.Quote{
			Text:                  truncateRunes(r.Text, maxQuoteLength),
			VotedUp:               r.VotedUp,
			VotesUp:               r.VotesUp,
			WeightedVoteScore:     r.WeightedVoteScore,
			PlaytimeAtReviewHours: math.Round(r.PlaytimeAtReviewHours*10) / 10,
		})
	}
	return quotes
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return strings.TrimSpace(text)
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit]))
}

func (s *Synthesizer) recommendations(painPoints []crawler.ThemeCount, negative []crawler.KeyPhrase) []string {
	actions := make([]string, 0, len(painPoints)+maxPhraseNudges)
	for _, pain := range painPoints {
		if tmpl, ok := s.tables.Recommendations[pain.Name]; ok {
			actions = append(actions, fmt.Sprintf(tmpl, pain.Count))
			continue
		}
		actions = append(actions, fmt.Sprintf(s.tables.GenericRecommendation, pain.Name, pain.Count))
	}
	for i, phrase := range negative {
		if i == maxPhraseNudges {
			break
		}
		actions = append(actions, fmt.Sprintf(s.tables.PhraseNudge, phrase.Phrase, phrase.Count))
	}
	if len(actions) > maxRecommendations {
		actions = actions[:maxRecommendations]
	}
	return actions
}

func describe(themes []crawler.ThemeCount) []string {
	out := make([]string, 0, len(themes))
	for _, t := range themes {
		out = append(out, fmt.Sprintf("%s (%d)", t.Name, t.Count))
	}
	return out
}
