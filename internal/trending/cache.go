package trending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/metrics"
	"github.com/JakeFAU/steam-sentiment/internal/storage"
)

// SchemaVersion is stamped on every payload. Cached payloads with an older
// version are re-scored on read.
const SchemaVersion = 2

// DefaultListSize is the length of each ranked list.
const DefaultListSize = 12

const (
	keyPrefix      = "trending-"
	sampleSource   = "bundled-sample"
	detailSource   = "store-appdetails"
	algorithmBlurb = "Most popular blends log-scaled concurrent players (50%), followers (33%), " +
		"wishlist signal (13%) and a small freshness boost (4%). Emerging hits reward recent or upcoming " +
		"titles whose players are high relative to their age and following, damp titles with very large " +
		"followings, and add bonuses for Early Access, new-release, coming-soon, hot-list and upcoming-radar provenance."
)

// Discoverer produces the raw candidate set and the names of the sources
// that contributed.
type Discoverer interface {
	Discover(ctx context.Context) ([]crawler.GameCandidate, []string, error)
}

// CandidateEnricher fills in per-title details.
type CandidateEnricher interface {
	Enrich(ctx context.Context, candidates []crawler.GameCandidate) ([]crawler.GameCandidate, error)
}

// Config tunes the Manager.
type Config struct {
	// ListSize bounds each ranked list. Defaults to DefaultListSize.
	ListSize int
}

// Manager serves the trending report from a per-day cache, running the live
// pipeline on a miss and the bundled sample when the live pipeline fails.
type Manager struct {
	cfg      Config
	docs     storage.DocumentStore
	discover Discoverer
	enricher CandidateEnricher
	clock    crawler.Clock
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewManager constructs a Manager.
func NewManager(
	cfg Config,
	docs storage.DocumentStore,
	discover Discoverer,
	enricher CandidateEnricher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Manager {
	if cfg.ListSize <= 0 {
		cfg.ListSize = DefaultListSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		docs:     docs,
		discover: discover,
		enricher: enricher,
		clock:    clock,
		logger:   logger.Named("trending"),
	}
}

// CacheKey is the document key for the day containing now, in UTC.
func CacheKey(now time.Time) string {
	return keyPrefix + now.UTC().Format(time.DateOnly)
}

// GetTrending returns today's report. Unless forceRefresh is set, a valid
// cached payload for today is returned as is. A live failure yields the
// bundled sample, which is cached under today's key so later calls reuse it.
func (m *Manager) GetTrending(ctx context.Context, forceRefresh bool) (crawler.TrendingPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().UTC()
	key := CacheKey(now)
	cached, hasCached := m.loadCached(ctx, key)

	if !forceRefresh && hasCached {
		if cached.SchemaVersion < SchemaVersion {
			cached = m.rescore(cached, now)
			m.save(ctx, key, cached)
		}
		metrics.ObserveTrending("cache")
		return cached, nil
	}

	payload, err := m.live(ctx, now)
	if err == nil {
		m.save(ctx, key, payload)
		metrics.ObserveTrending("live")
		return payload, nil
	}
	if errors.Is(err, context.Canceled) {
		return crawler.TrendingPayload{}, err
	}
	m.logger.Warn("live trending pipeline failed; serving sample", zap.Error(err))

	if hasCached && cached.Source == crawler.SourceFallback {
		if cached.SchemaVersion < SchemaVersion {
			cached = m.rescore(cached, now)
			m.save(ctx, key, cached)
		}
		metrics.ObserveTrending("fallback")
		return cached, nil
	}
	payload = m.fallback(now, err)
	m.save(ctx, key, payload)
	metrics.ObserveTrending("fallback")
	return payload, nil
}

func (m *Manager) loadCached(ctx context.Context, key string) (crawler.TrendingPayload, bool) {
	var payload crawler.TrendingPayload
	err := storage.GetJSON(ctx, m.docs, key, &payload)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return crawler.TrendingPayload{}, false
	default:
		m.logger.Warn("trending cache unreadable", zap.String("key", key), zap.Error(err))
		return crawler.TrendingPayload{}, false
	}
	if payload.MostPopular == nil || payload.EmergingHits == nil {
		m.logger.Warn("trending cache has no ranked lists", zap.String("key", key))
		return crawler.TrendingPayload{}, false
	}
	return payload, true
}

func (m *Manager) save(ctx context.Context, key string, payload crawler.TrendingPayload) {
	if err := storage.PutJSON(ctx, m.docs, key, payload); err != nil {
		m.logger.Error("failed to cache trending payload", zap.String("key", key), zap.Error(err))
	}
}

func (m *Manager) live(ctx context.Context, now time.Time) (crawler.TrendingPayload, error) {
	if m.discover == nil || m.enricher == nil {
		return crawler.TrendingPayload{}, errors.New("live trending pipeline not configured")
	}
	candidates, sources, err := m.discover.Discover(ctx)
	if err != nil {
		return crawler.TrendingPayload{}, fmt.Errorf("discover candidates: %w", err)
	}
	enriched, err := m.enricher.Enrich(ctx, candidates)
	if err != nil {
		return crawler.TrendingPayload{}, fmt.Errorf("enrich candidates: %w", err)
	}
	return m.build(ScoreAll(enriched, now), now, crawler.SourceSteamLive, append(sources, detailSource)), nil
}

func (m *Manager) fallback(now time.Time, cause error) crawler.TrendingPayload {
	payload := m.build(ScoreAll(SampleCandidates(now), now), now, crawler.SourceFallback, []string{sampleSource})
	payload.FallbackReason = cause.Error()
	return payload
}

func (m *Manager) build(scored []crawler.ScoredGame, now time.Time, source string, dataSources []string) crawler.TrendingPayload {
	popular, emerging := Rank(scored, m.cfg.ListSize)
	return crawler.TrendingPayload{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   now,
		Source:        source,
		Algorithm: crawler.Algorithm{
			Description: algorithmBlurb,
			DataSources: dataSources,
		},
		MostPopular:  popular,
		EmergingHits: emerging,
	}
}

// rescore recomputes scores and ranks for a payload cached under an older
// schema, keeping its provenance.
func (m *Manager) rescore(p crawler.TrendingPayload, now time.Time) crawler.TrendingPayload {
	var candidates []crawler.GameCandidate
	for _, g := range p.MostPopular {
		candidates = append(candidates, g.GameCandidate)
	}
	for _, g := range p.EmergingHits {
		candidates = append(candidates, g.GameCandidate)
	}
	out := m.build(ScoreAll(Merge(candidates...), now), p.GeneratedAt, p.Source, p.Algorithm.DataSources)
	out.FallbackReason = p.FallbackReason
	m.logger.Info("re-scored cached trending payload",
		zap.Int("from_schema", p.SchemaVersion),
		zap.Int("to_schema", SchemaVersion),
	)
	return out
}
