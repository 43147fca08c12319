package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-sentiment/internal/clock"
	"github.com/JakeFAU/steam-sentiment/internal/id/uuid"
	"github.com/JakeFAU/steam-sentiment/internal/publisher/memory"
)

type fakeCatalog struct {
	entries []CatalogEntry
	err     error
}

func (f *fakeCatalog) DiscoverCatalog(context.Context) ([]CatalogEntry, error) {
	return f.entries, f.err
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	fail    map[int64]error
	calls   []int64
	limits  []int
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAnalyzer) AnalyzeApp(ctx context.Context, appID int64, name string, limit int) (SentimentResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, appID)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return SentimentResult{}, ctx.Err()
		}
	}
	if err := f.fail[appID]; err != nil {
		return SentimentResult{}, err
	}
	total := 10
	return SentimentResult{
		Source: SourceSteamLive,
		Game:   Game{AppID: appID, Name: name},
		Crawl:  CrawlSummary{Comprehensive: true, PagesFetched: 1, ReviewsCollected: 10, TotalReportedBySteam: &total},
		Analysis: SentimentAnalysis{
			Query:                name,
			SentimentScore:       40,
			TotalReviewsAnalyzed: 10,
			PositiveCount:        7,
			NegativeCount:        3,
		},
	}, nil
}

type fakeRecordStore struct {
	mu        sync.Mutex
	records   map[int64]StoredGameRecord
	statuses  []CrawlerStatus
	upsertErr error
	clock     Clock
}

func newFakeRecordStore(clk Clock) *fakeRecordStore {
	return &fakeRecordStore{records: map[int64]StoredGameRecord{}, clock: clk}
}

func (f *fakeRecordStore) UpsertGame(_ context.Context, r StoredGameRecord) (StoredGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return StoredGameRecord{}, f.upsertErr
	}
	r.StoredAt = f.clock.Now()
	f.records[r.AppID] = r
	return r, nil
}

func (f *fakeRecordStore) SaveCrawlerStatus(_ context.Context, s CrawlerStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s)
	return nil
}

func (f *fakeRecordStore) lastStatus() CrawlerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[len(f.statuses)-1]
}

type orchestratorFixture struct {
	orch      *Orchestrator
	catalog   *fakeCatalog
	analyzer  *fakeAnalyzer
	store     *fakeRecordStore
	publisher *memory.Publisher
}

func newOrchestratorFixture(entries []CatalogEntry, cfg OrchestratorConfig) orchestratorFixture {
	clk := clock.NewFixed(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC))
	f := orchestratorFixture{
		catalog:   &fakeCatalog{entries: entries},
		analyzer:  &fakeAnalyzer{fail: map[int64]error{}},
		store:     newFakeRecordStore(clk),
		publisher: memory.New(),
	}
	f.orch = NewOrchestrator(f.catalog, f.analyzer, f.store, f.publisher, clk, uuid.New(), cfg, nil)
	return f
}

func waitFor(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

func TestOrchestratorCompletesSweep(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{
		{AppID: 10, Name: "Ten"},
		{AppID: 20, Name: ""},
		{AppID: 30, Name: "Thirty"},
	}, OrchestratorConfig{MaxReviewsPerGame: 250})
	f.analyzer.fail[20] = &UpstreamError{Source: "appreviews", StatusCode: 500, Err: errors.New("boom")}

	res := f.orch.Start(context.Background())
	assert.True(t, res.Started)
	assert.Equal(t, "Background crawler started.", res.Message)
	waitFor(t, f.orch)

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, StateCompleted, status.LastResult)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 3, status.Scanned)
	assert.Equal(t, 2, status.Stored)
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, "Completed. Stored 2 analyses (1 failed).", status.Message)
	assert.NotEmpty(t, status.RunID)
	require.NotNil(t, status.StartedAt)
	require.NotNil(t, status.FinishedAt)
	assert.Equal(t, status, f.store.lastStatus())

	live := f.store.records[10]
	assert.Equal(t, RecordSourceLive, live.Source)
	require.NotNil(t, live.Analysis)
	assert.Equal(t, 10, live.Crawl.ReviewsCollected)

	failed := f.store.records[20]
	assert.Equal(t, RecordSourceError, failed.Source)
	assert.Equal(t, "App 20", failed.Name)
	assert.Contains(t, failed.Error, "boom")
	assert.Nil(t, failed.Analysis)
	assert.Equal(t, CrawlSummary{}, failed.Crawl)

	assert.Equal(t, []int{250, 250, 250}, f.analyzer.limits)
	assert.Len(t, f.publisher.Topic(EventGameStored), 3)
	finished := f.publisher.Topic(EventCrawlFinished)
	require.Len(t, finished, 1)
	event, ok := finished[0].Payload.(CrawlFinishedEvent)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, event.Result)
	assert.Equal(t, status.RunID, event.RunID)
}

func TestOrchestratorBoundsCatalog(t *testing.T) {
	t.Parallel()

	var entries []CatalogEntry
	for i := int64(1); i <= 10; i++ {
		entries = append(entries, CatalogEntry{AppID: i, Name: fmt.Sprintf("Game %d", i)})
	}
	f := newOrchestratorFixture(entries, OrchestratorConfig{MaxGames: 4})
	require.True(t, f.orch.Start(context.Background()).Started)
	waitFor(t, f.orch)

	assert.Equal(t, []int64{1, 2, 3, 4}, f.analyzer.calls)
	assert.Equal(t, 4, f.orch.Status().Total)
}

func TestOrchestratorRejectsConcurrentStart(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1, Name: "One"}}, OrchestratorConfig{})
	f.analyzer.block = make(chan struct{})
	f.analyzer.started = make(chan struct{}, 1)

	require.True(t, f.orch.Start(context.Background()).Started)
	<-f.analyzer.started

	second := f.orch.Start(context.Background())
	assert.False(t, second.Started)
	assert.Equal(t, "Crawler already running.", second.Message)
	status := f.orch.Status()
	assert.True(t, status.Running)
	assert.Equal(t, StateCrawling, status.State)

	close(f.analyzer.block)
	waitFor(t, f.orch)
	assert.Len(t, f.analyzer.calls, 1)

	again := f.orch.Start(context.Background())
	assert.True(t, again.Started, "a finished crawler accepts a new start")
	waitFor(t, f.orch)
}

func TestOrchestratorDiscoveryFailure(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(nil, OrchestratorConfig{})
	f.catalog.err = errors.New("steamspy down")

	require.True(t, f.orch.Start(context.Background()).Started)
	waitFor(t, f.orch)

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.Equal(t, StateFailed, status.LastResult)
	assert.Contains(t, status.Message, "Crawler failed: discover catalog: steamspy down")
	assert.Empty(t, f.analyzer.calls)
}

func TestOrchestratorStorageFailureFailsRun(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1}, {AppID: 2}}, OrchestratorConfig{})
	f.store.upsertErr = errors.New("disk full")

	require.True(t, f.orch.Start(context.Background()).Started)
	waitFor(t, f.orch)

	status := f.orch.Status()
	assert.Equal(t, StateFailed, status.LastResult)
	assert.Contains(t, status.Message, "disk full")
	assert.Len(t, f.analyzer.calls, 1)
}

func TestOrchestratorStop(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1}, {AppID: 2}}, OrchestratorConfig{})
	f.analyzer.block = make(chan struct{})
	f.analyzer.started = make(chan struct{}, 1)

	assert.False(t, f.orch.Stop(), "nothing to stop while idle")
	require.True(t, f.orch.Start(context.Background()).Started)
	<-f.analyzer.started

	assert.True(t, f.orch.Stop())
	waitFor(t, f.orch)

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.Equal(t, StateFailed, status.LastResult)
	assert.Equal(t, "Crawler failed: stopped", status.Message)
	assert.Empty(t, f.store.records, "a cancelled title is not recorded")
}

func TestOrchestratorSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1, Name: "One"}}, OrchestratorConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, f.orch.Start(ctx).Started)
	cancel()
	waitFor(t, f.orch)

	assert.Equal(t, StateCompleted, f.orch.Status().LastResult)
}

func TestOrchestratorPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1, Name: "One"}}, OrchestratorConfig{})
	f.publisher.FailWith(errors.New("broker down"))

	require.True(t, f.orch.Start(context.Background()).Started)
	waitFor(t, f.orch)
	assert.Equal(t, StateCompleted, f.orch.Status().LastResult)
	assert.Equal(t, 1, f.orch.Status().Stored)
}

func TestOrchestratorRestore(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(nil, OrchestratorConfig{})
	f.orch.Restore(CrawlerStatus{Running: true, State: StateCrawling, Scanned: 5, Message: "Crawled 5/9"})

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, StateFailed, status.LastResult)
	assert.Equal(t, 5, status.Scanned)
	assert.Equal(t, "Crawler interrupted before completion.", status.Message)

	f.orch.Restore(CrawlerStatus{})
	assert.Equal(t, "idle", f.orch.Status().Message)
}

func TestOrchestratorPacesBetweenTitles(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture([]CatalogEntry{{AppID: 1}, {AppID: 2}, {AppID: 3}},
		OrchestratorConfig{Delay: 40 * time.Millisecond})
	start := time.Now()
	require.True(t, f.orch.Start(context.Background()).Started)
	waitFor(t, f.orch)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
