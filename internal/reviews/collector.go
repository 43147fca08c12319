// Package reviews paginates the upstream review source for a single title.
package reviews

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/metrics"
)

const (
	defaultPageSize   = 100
	defaultMaxPages   = 1500
	defaultMaxReviews = 100000
	initialCursor     = "*"
)

// Config holds the collector's hard limits.
//   - PageSize: reviews requested per page (default 100).
//   - MaxPages: page ceiling independent of review count (default 1500).
//   - MaxReviews: global hard review cap (default 100000).
type Config struct {
	PageSize   int
	MaxPages   int
	MaxReviews int
}

// Collector walks review pages until one of its termination rules fires.
type Collector struct {
	source crawler.ReviewSource
	cfg    Config
	logger *zap.Logger
}

// New constructs a Collector.
func New(source crawler.ReviewSource, cfg Config, logger *zap.Logger) *Collector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = defaultMaxReviews
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{source: source, cfg: cfg, logger: logger}
}

// HardCap returns the global review cap.
func (c *Collector) HardCap() int {
	return c.cfg.MaxReviews
}

// EffectiveCap is min(limitReviews, hard cap) when limitReviews > 0, else the hard cap.
func (c *Collector) EffectiveCap(limitReviews int) int {
	if limitReviews > 0 && limitReviews < c.cfg.MaxReviews {
		return limitReviews
	}
	return c.cfg.MaxReviews
}

// Collect fetches reviews for appID. Any page failure aborts the call and
// nothing collected so far is returned.
func (c *Collector) Collect(ctx context.Context, appID int64, limitReviews int) (crawler.ReviewBatch, error) {
	hardCap := c.EffectiveCap(limitReviews)
	stats := crawler.CrawlStats{HardCap: hardCap}
	cursor := initialCursor
	var collected []crawler.Review

	for page := 0; page < c.cfg.MaxPages; page++ {
		result, err := c.source.FetchReviewPage(ctx, appID, cursor, c.cfg.PageSize)
		if err != nil {
			return crawler.ReviewBatch{}, fmt.Errorf("fetch review page %d for app %d: %w", page+1, appID, err)
		}
		stats.PagesFetched++
		metrics.ObserveReviewPage(len(result.Reviews))

		if page == 0 && result.TotalReviews > 0 {
			total := result.TotalReviews
			stats.TotalReported = &total
		}

		if len(result.Reviews) == 0 {
			break
		}
		collected = append(collected, result.Reviews...)

		if len(collected) >= hardCap {
			stats.Capped = true
			c.logger.Debug("review cap reached",
				zap.Int64("app_id", appID),
				zap.Int("cap", hardCap),
				zap.Int("pages", stats.PagesFetched),
			)
			return crawler.ReviewBatch{Reviews: collected[:hardCap], Stats: stats}, nil
		}
		if stats.TotalReported != nil && len(collected) >= *stats.TotalReported {
			break
		}
		if result.Cursor == "" || result.Cursor == cursor {
			break
		}
		cursor = result.Cursor
	}

	c.logger.Debug("review collection finished",
		zap.Int64("app_id", appID),
		zap.Int("reviews", len(collected)),
		zap.Int("pages", stats.PagesFetched),
	)
	return crawler.ReviewBatch{Reviews: collected, Stats: stats}, nil
}

// Summarize turns collection stats into the crawl block reported to callers.
func Summarize(batch crawler.ReviewBatch) crawler.CrawlSummary {
	collected := len(batch.Reviews)
	summary := crawler.CrawlSummary{
		PagesFetched:         batch.Stats.PagesFetched,
		ReviewsCollected:     collected,
		HardCap:              batch.Stats.HardCap,
		TotalReportedBySteam: batch.Stats.TotalReported,
	}
	total := batch.Stats.TotalReported
	summary.Comprehensive = !batch.Stats.Capped && (total == nil || collected >= *total)
	if total != nil && *total > 0 {
		coverage := crawler.Round(float64(collected)/float64(*total)*100, 2)
		summary.CoveragePercent = &coverage
	}
	return summary
}
