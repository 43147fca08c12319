// Package analyzer answers sentiment queries by chaining title search, review
// collection and synthesis, substituting bundled sample data on failure.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/metrics"
	"github.com/JakeFAU/steam-sentiment/internal/reviews"
)

const minQueryLength = 2

// Collector gathers reviews for one title.
type Collector interface {
	Collect(ctx context.Context, appID int64, limitReviews int) (crawler.ReviewBatch, error)
	HardCap() int
}

// Synthesizer turns reviews into an analysis.
type Synthesizer interface {
	Summarize(reviews []crawler.Review, query string) crawler.SentimentAnalysis
}

// QueryOptions tunes a single sentiment query.
type QueryOptions struct {
	// LimitReviews caps collection below the global hard cap when > 0.
	LimitReviews int
	// Strict surfaces upstream failures instead of substituting sample data.
	Strict bool
}

// Service wires search, collection and synthesis.
type Service struct {
	searcher  crawler.GameSearcher
	collector Collector
	synth     Synthesizer
	logger    *zap.Logger
}

// New constructs a Service.
func New(searcher crawler.GameSearcher, collector Collector, synth Synthesizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		searcher:  searcher,
		collector: collector,
		synth:     synth,
		logger:    logger,
	}
}

// AnalyzeApp collects and analyses reviews for a known title. It never falls
// back to sample data.
func (s *Service) AnalyzeApp(
	ctx context.Context,
	appID int64,
	name string,
	limitReviews int,
) (crawler.SentimentResult, error) {
	if name == "" {
		name = crawler.FallbackAppName(appID)
	}
	batch, err := s.collector.Collect(ctx, appID, limitReviews)
	if err != nil {
		return crawler.SentimentResult{}, err
	}
	if len(batch.Reviews) == 0 {
		return crawler.SentimentResult{}, fmt.Errorf("app %d: %w", appID, crawler.ErrNoReviews)
	}
	return crawler.SentimentResult{
		Source:   crawler.SourceSteamLive,
		Game:     crawler.Game{AppID: appID, Name: name, Price: "N/A"},
		Crawl:    reviews.Summarize(batch),
		Analysis: s.synth.Summarize(batch.Reviews, name),
	}, nil
}

// AnalyzeQuery resolves query to a title and analyses it. Queries shorter
// than two characters are rejected before any network call. Unless opts.Strict
// is set, upstream failures yield the bundled sample with a fallback reason.
func (s *Service) AnalyzeQuery(ctx context.Context, query string, opts QueryOptions) (crawler.SentimentResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return crawler.SentimentResult{}, fmt.Errorf("please enter at least 2 characters: %w", crawler.ErrInvalidInput)
	}

	result, err := s.analyzeLive(ctx, query, opts.LimitReviews)
	if err == nil {
		metrics.ObserveSentimentQuery(crawler.SourceSteamLive)
		return result, nil
	}
	if opts.Strict || errors.Is(err, context.Canceled) {
		return crawler.SentimentResult{}, err
	}

	s.logger.Warn("live sentiment query failed; serving fallback sample",
		zap.String("query", query),
		zap.Error(err),
	)
	metrics.ObserveSentimentQuery(crawler.SourceFallback)
	return s.fallback(query, err), nil
}

func (s *Service) analyzeLive(ctx context.Context, query string, limitReviews int) (crawler.SentimentResult, error) {
	game, err := s.searcher.SearchGame(ctx, query)
	if err != nil {
		return crawler.SentimentResult{}, fmt.Errorf("search %q: %w", query, err)
	}
	result, err := s.AnalyzeApp(ctx, game.AppID, game.Name, limitReviews)
	if err != nil {
		return crawler.SentimentResult{}, err
	}
	result.Game.TinyImage = game.TinyImage
	result.Game.Price = game.Price
	return result, nil
}

func (s *Service) fallback(query string, cause error) crawler.SentimentResult {
	sample := FallbackReviews()
	return crawler.SentimentResult{
		Source:         crawler.SourceFallback,
		FallbackReason: cause.Error(),
		Game: crawler.Game{
			AppID: 0,
			Name:  query + " (fallback sample)",
			Price: "N/A",
		},
		Crawl: crawler.CrawlSummary{
			PagesFetched:     0,
			ReviewsCollected: len(sample),
			HardCap:          s.collector.HardCap(),
		},
		Analysis: s.synth.Summarize(sample, query),
	}
}

// FallbackReviews returns the bundled review sample.
func FallbackReviews() []crawler.Review {
	return []crawler.Review{
		{Text: "Great gameplay loop and smooth performance. Developers keep patching fast.", VotedUp: true},
		{Text: "Very addictive combat and lots of content for the price.", VotedUp: true},
		{Text: "Atmosphere and visuals are beautiful, runs stable on my pc.", VotedUp: true},
		{Text: "Fun core mechanics but matchmaking feels unfair and full of cheaters.", VotedUp: false},
		{Text: "Good game but occasional crashes and bugs after the latest update.", VotedUp: false},
		{Text: "Needs better optimization and less grind in late game.", VotedUp: false},
	}
}
