// Package store keeps the crawl database: one document holding every stored
// per-title record plus the crawler status.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/storage"
)

// DocumentKey is the storage key of the crawl database document.
const DocumentKey = "reviews-db"

// DefaultListLimit applies when ListGames is called without a positive limit.
const DefaultListLimit = 50

// ErrNotFound signals that no record is stored for the requested title.
var ErrNotFound = errors.New("record not found")

// ReviewDB is a typed view over the crawl database document. Every write is a
// whole-document read-modify-write, serialized within the process.
type ReviewDB struct {
	docs   storage.DocumentStore
	clock  crawler.Clock
	logger *zap.Logger
	mu     sync.Mutex
}

// NewReviewDB constructs a ReviewDB.
func NewReviewDB(docs storage.DocumentStore, clock crawler.Clock, logger *zap.Logger) *ReviewDB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewDB{docs: docs, clock: clock, logger: logger.Named("review_db")}
}

// Load returns the current document. A missing or corrupt document reads as
// the empty database.
func (db *ReviewDB) Load(ctx context.Context) (crawler.CrawlDatabase, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.load(ctx)
}

func (db *ReviewDB) load(ctx context.Context) (crawler.CrawlDatabase, error) {
	var doc crawler.CrawlDatabase
	err := storage.GetJSON(ctx, db.docs, DocumentKey, &doc)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return crawler.EmptyCrawlDatabase(), nil
	case errors.Is(err, storage.ErrCorrupt):
		db.logger.Warn("crawl database unreadable; starting empty", zap.Error(err))
		return crawler.EmptyCrawlDatabase(), nil
	default:
		return crawler.CrawlDatabase{}, fmt.Errorf("load crawl database: %w", err)
	}
	if doc.Games == nil {
		doc.Games = map[string]crawler.StoredGameRecord{}
	}
	if doc.Crawler.State == "" {
		doc.Crawler.State = crawler.StateIdle
		if doc.Crawler.Running {
			doc.Crawler.State = crawler.StateCrawling
		}
	}
	return doc, nil
}

func (db *ReviewDB) save(ctx context.Context, doc crawler.CrawlDatabase) error {
	now := db.clock.Now()
	doc.UpdatedAt = &now
	if err := storage.PutJSON(ctx, db.docs, DocumentKey, doc); err != nil {
		return fmt.Errorf("save crawl database: %w", err)
	}
	return nil
}

func (db *ReviewDB) update(ctx context.Context, mutate func(*crawler.CrawlDatabase)) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	doc, err := db.load(ctx)
	if err != nil {
		return err
	}
	mutate(&doc)
	return db.save(ctx, doc)
}

// UpsertGame replaces the record for record.AppID, stamping StoredAt.
func (db *ReviewDB) UpsertGame(ctx context.Context, record crawler.StoredGameRecord) (crawler.StoredGameRecord, error) {
	record.StoredAt = db.clock.Now()
	err := db.update(ctx, func(doc *crawler.CrawlDatabase) {
		doc.Games[crawler.AppKey(record.AppID)] = record
	})
	if err != nil {
		return crawler.StoredGameRecord{}, err
	}
	return record, nil
}

// GetGame returns the stored record for appID or ErrNotFound.
func (db *ReviewDB) GetGame(ctx context.Context, appID int64) (crawler.StoredGameRecord, error) {
	doc, err := db.Load(ctx)
	if err != nil {
		return crawler.StoredGameRecord{}, err
	}
	record, ok := doc.Games[crawler.AppKey(appID)]
	if !ok {
		return crawler.StoredGameRecord{}, fmt.Errorf("app %d: %w", appID, ErrNotFound)
	}
	return record, nil
}

// CrawlerStatus returns the persisted crawler status.
func (db *ReviewDB) CrawlerStatus(ctx context.Context) (crawler.CrawlerStatus, error) {
	doc, err := db.Load(ctx)
	if err != nil {
		return crawler.CrawlerStatus{}, err
	}
	return doc.Crawler, nil
}

// SaveCrawlerStatus replaces the persisted crawler status.
func (db *ReviewDB) SaveCrawlerStatus(ctx context.Context, status crawler.CrawlerStatus) error {
	return db.update(ctx, func(doc *crawler.CrawlDatabase) {
		doc.Crawler = status
	})
}

// ListGames returns up to limit records, most recently stored first.
func (db *ReviewDB) ListGames(ctx context.Context, limit int) ([]crawler.StoredGameRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	doc, err := db.Load(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]crawler.StoredGameRecord, 0, len(doc.Games))
	for _, r := range doc.Games {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].StoredAt.Equal(records[j].StoredAt) {
			return records[i].StoredAt.After(records[j].StoredAt)
		}
		return records[i].AppID < records[j].AppID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
