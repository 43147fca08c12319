package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ReviewSource returns cursor pages of reviews for one title.
type ReviewSource interface {
	FetchReviewPage(ctx context.Context, appID int64, cursor string, pageSize int) (ReviewPage, error)
}

// GameSearcher resolves a free-text query to a title.
// Implementations return ErrNotFound when nothing matches.
type GameSearcher interface {
	SearchGame(ctx context.Context, query string) (Game, error)
}

// CatalogSource lists titles for the background crawl.
type CatalogSource interface {
	DiscoverCatalog(ctx context.Context) ([]CatalogEntry, error)
}

// AppAnalyzer runs collection and synthesis for a known title with no fallback.
type AppAnalyzer interface {
	AnalyzeApp(ctx context.Context, appID int64, name string, limitReviews int) (SentimentResult, error)
}

// GameRecordStore persists per-title results and the crawler status.
type GameRecordStore interface {
	UpsertGame(ctx context.Context, record StoredGameRecord) (StoredGameRecord, error)
	SaveCrawlerStatus(ctx context.Context, status CrawlerStatus) error
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
