package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/metrics"
)

// Events published by the orchestrator.
const (
	EventGameStored    = "game.stored"
	EventCrawlFinished = "crawl.finished"
)

// Defaults for OrchestratorConfig.
const (
	DefaultMaxGames          = 500
	DefaultMaxReviewsPerGame = 5000
	DefaultCrawlDelay        = 120 * time.Millisecond
)

// OrchestratorConfig bounds a sweep.
type OrchestratorConfig struct {
	MaxGames          int
	MaxReviewsPerGame int
	// Delay is the pause between titles.
	Delay time.Duration
}

// GameStoredEvent is published after each stored title.
type GameStoredEvent struct {
	RunID          string    `json:"runId"`
	AppID          int64     `json:"appId"`
	Name           string    `json:"name"`
	Source         string    `json:"source"`
	SentimentScore *float64  `json:"sentimentScore,omitempty"`
	Error          string    `json:"error,omitempty"`
	StoredAt       time.Time `json:"storedAt"`
}

// CrawlFinishedEvent is published when a sweep ends.
type CrawlFinishedEvent struct {
	RunID      string     `json:"runId"`
	Result     CrawlState `json:"result"`
	Total      int        `json:"total"`
	Scanned    int        `json:"scanned"`
	Stored     int        `json:"stored"`
	Failed     int        `json:"failed"`
	Message    string     `json:"message"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// Orchestrator runs one background sweep at a time over the catalog,
// analysing and storing each title in turn. Status is owned by the
// orchestrator and handed out as snapshots.
type Orchestrator struct {
	catalog   CatalogSource
	analyzer  AppAnalyzer
	store     GameRecordStore
	publisher Publisher
	clock     Clock
	ids       IDGenerator
	cfg       OrchestratorConfig
	logger    *zap.Logger

	mu     sync.Mutex
	status CrawlerStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator constructs an idle Orchestrator. publisher may be nil.
func NewOrchestrator(
	catalog CatalogSource,
	analyzer AppAnalyzer,
	store GameRecordStore,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = DefaultMaxGames
	}
	if cfg.MaxReviewsPerGame <= 0 {
		cfg.MaxReviewsPerGame = DefaultMaxReviewsPerGame
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		catalog:   catalog,
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		status:    IdleStatus(),
	}
}

// Restore seeds the status from a persisted record. A record left running by
// a previous process is reported as an interrupted failure.
func (o *Orchestrator) Restore(status CrawlerStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Running {
		return
	}
	if status.Running {
		status.Running = false
		status.LastResult = StateFailed
		status.Message = "Crawler interrupted before completion."
	}
	status.State = StateIdle
	if status.Message == "" {
		status.Message = "idle"
	}
	o.status = status
}

// Status returns a snapshot of the crawler status.
func (o *Orchestrator) Status() CrawlerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Start launches a sweep and returns immediately. It is a no-op while a
// sweep is already running. The sweep outlives ctx's cancellation; use Stop
// to end it early.
func (o *Orchestrator) Start(ctx context.Context) StartResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Running {
		return StartResult{Started: false, Message: "Crawler already running."}
	}

	runID, err := o.ids.NewID()
	if err != nil {
		o.logger.Error("failed to allocate run id", zap.Error(err))
		return StartResult{Started: false, Message: fmt.Sprintf("Crawler failed to start: %v", err)}
	}
	now := o.clock.Now()
	o.status = CrawlerStatus{
		Running:    true,
		State:      StateDiscovering,
		LastResult: o.status.LastResult,
		RunID:      runID,
		StartedAt:  &now,
		Message:    "Discovering game catalog...",
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.done = make(chan struct{})
	metrics.SetCrawlerRunning(true)
	go o.run(runCtx, cancel, o.done)

	return StartResult{Started: true, Message: "Background crawler started."}
}

// Stop cancels the running sweep, if any. It reports whether a sweep was
// running.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.status.Running || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Wait blocks until the current sweep, if any, has finished or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	logger := o.logger.With(zap.String("run_id", o.Status().RunID))
	logger.Info("crawl started")
	o.persistStatus(ctx)

	err := o.sweep(ctx, logger)
	o.finish(ctx, logger, err)
}

func (o *Orchestrator) sweep(ctx context.Context, logger *zap.Logger) error {
	entries, err := o.catalog.DiscoverCatalog(ctx)
	if err != nil {
		return fmt.Errorf("discover catalog: %w", err)
	}
	if len(entries) > o.cfg.MaxGames {
		entries = entries[:o.cfg.MaxGames]
	}

	total := len(entries)
	o.updateStatus(func(s *CrawlerStatus) {
		s.State = StateCrawling
		s.Total = total
		s.Message = fmt.Sprintf("Crawling %d games...", total)
	})
	o.persistStatus(ctx)
	logger.Info("catalog discovered", zap.Int("titles", total))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.crawlTitle(ctx, logger, entry); err != nil {
			return err
		}
		o.updateStatus(func(s *CrawlerStatus) {
			s.Message = fmt.Sprintf("Crawled %d/%d", i+1, total)
		})
		o.persistStatus(ctx)

		if i < total-1 && o.cfg.Delay > 0 {
			timer := time.NewTimer(o.cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

// crawlTitle analyses and stores one title. A title failure is recorded and
// swallowed; only cancellation and storage failures end the sweep.
func (o *Orchestrator) crawlTitle(ctx context.Context, logger *zap.Logger, entry CatalogEntry) error {
	name := entry.Name
	if name == "" {
		name = FallbackAppName(entry.AppID)
	}

	record := StoredGameRecord{AppID: entry.AppID, Name: name}
	result, err := o.analyzer.AnalyzeApp(ctx, entry.AppID, name, o.cfg.MaxReviewsPerGame)
	switch {
	case err == nil:
		analysis := result.Analysis
		record.Source = RecordSourceLive
		record.Crawl = result.Crawl
		record.Analysis = &analysis
		if result.Game.Name != "" {
			record.Name = result.Game.Name
		}
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		logger.Warn("title analysis failed", zap.Int64("app_id", entry.AppID), zap.Error(err))
		record.Source = RecordSourceError
		record.Error = err.Error()
	}

	stored, err := o.store.UpsertGame(ctx, record)
	if err != nil {
		return fmt.Errorf("store app %d: %w", entry.AppID, err)
	}

	runID := ""
	o.updateStatus(func(s *CrawlerStatus) {
		runID = s.RunID
		s.Scanned++
		if stored.Source == RecordSourceLive {
			s.Stored++
		} else {
			s.Failed++
		}
	})
	if stored.Source == RecordSourceLive {
		metrics.ObserveTitle("stored")
	} else {
		metrics.ObserveTitle("failed")
	}

	event := GameStoredEvent{
		RunID:    runID,
		AppID:    stored.AppID,
		Name:     stored.Name,
		Source:   stored.Source,
		Error:    stored.Error,
		StoredAt: stored.StoredAt,
	}
	if stored.Analysis != nil {
		score := stored.Analysis.SentimentScore
		event.SentimentScore = &score
	}
	o.publish(ctx, logger, EventGameStored, event)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, runErr error) {
	now := o.clock.Now()
	result := StateCompleted
	var snapshot CrawlerStatus
	o.updateStatus(func(s *CrawlerStatus) {
		s.Running = false
		s.State = StateIdle
		s.FinishedAt = &now
		if runErr != nil {
			result = StateFailed
			msg := runErr.Error()
			if errors.Is(runErr, context.Canceled) {
				msg = "stopped"
			}
			s.Message = fmt.Sprintf("Crawler failed: %s", msg)
		} else {
			s.Message = fmt.Sprintf("Completed. Stored %d analyses (%d failed).", s.Stored, s.Failed)
		}
		s.LastResult = result
		snapshot = *s
		metrics.SetCrawlerRunning(false)
	})

	if runErr != nil {
		logger.Error("crawl failed", zap.Error(runErr))
	} else {
		logger.Info("crawl completed",
			zap.Int("stored", snapshot.Stored),
			zap.Int("failed", snapshot.Failed),
		)
	}

	detached := context.WithoutCancel(ctx)
	o.persistStatus(detached)
	o.publish(detached, logger, EventCrawlFinished, CrawlFinishedEvent{
		RunID:      snapshot.RunID,
		Result:     result,
		Total:      snapshot.Total,
		Scanned:    snapshot.Scanned,
		Stored:     snapshot.Stored,
		Failed:     snapshot.Failed,
		Message:    snapshot.Message,
		FinishedAt: now,
	})
}

func (o *Orchestrator) updateStatus(mutate func(*CrawlerStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	mutate(&o.status)
}

func (o *Orchestrator) persistStatus(ctx context.Context) {
	if err := o.store.SaveCrawlerStatus(ctx, o.Status()); err != nil {
		o.logger.Warn("failed to persist crawler status", zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, event string, payload any) {
	if o.publisher == nil {
		return
	}
	if _, err := o.publisher.Publish(ctx, event, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}
