// Package trending builds the daily most-popular and emerging-hits report
// from several catalog sources.
package trending

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

// Source is one independent candidate list. Every candidate it returns is
// tagged with Flags. A positive Limit keeps only the first Limit entries.
type Source struct {
	Name  string
	Flags []crawler.SourceFlag
	Limit int
	Fetch func(ctx context.Context) ([]crawler.GameCandidate, error)
}

// Aggregator fans out to its sources and merges what came back.
type Aggregator struct {
	sources []Source
	logger  *zap.Logger
}

// NewAggregator constructs an Aggregator over sources.
func NewAggregator(logger *zap.Logger, sources ...Source) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{sources: sources, logger: logger.Named("aggregator")}
}

// Discover fetches every source concurrently and returns the deduplicated
// candidates plus the names of the sources that succeeded. It fails only
// when every source failed.
func (a *Aggregator) Discover(ctx context.Context) ([]crawler.GameCandidate, []string, error) {
	if len(a.sources) == 0 {
		return nil, nil, crawler.ErrAllSourcesFailed
	}
	tasks := make([]Task[[]crawler.GameCandidate], len(a.sources))
	for i, src := range a.sources {
		tasks[i] = src.Fetch
	}
	outcomes := SettleAll(ctx, tasks...)

	var (
		lists     [][]crawler.GameCandidate
		succeeded []string
		failures  []string
	)
	for i, outcome := range outcomes {
		src := a.sources[i]
		if !outcome.OK() {
			a.logger.Warn("candidate source failed", zap.String("source", src.Name), zap.Error(outcome.Err))
			failures = append(failures, fmt.Sprintf("%s: %v", src.Name, outcome.Err))
			continue
		}
		list := outcome.Value
		if src.Limit > 0 && len(list) > src.Limit {
			list = list[:src.Limit]
		}
		lists = append(lists, tagFlags(list, src.Flags))
		succeeded = append(succeeded, src.Name)
	}
	if len(succeeded) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", crawler.ErrAllSourcesFailed, strings.Join(failures, "; "))
	}

	var all []crawler.GameCandidate
	for _, list := range lists {
		all = append(all, list...)
	}
	merged := Merge(all...)
	a.logger.Debug("candidates discovered",
		zap.Int("raw", len(all)),
		zap.Int("unique", len(merged)),
		zap.Strings("sources", succeeded),
	)
	return merged, succeeded, nil
}

func tagFlags(candidates []crawler.GameCandidate, flags []crawler.SourceFlag) []crawler.GameCandidate {
	tags := make(crawler.SourceFlags, len(flags))
	for _, f := range flags {
		tags[f] = true
	}
	out := make([]crawler.GameCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.SourceFlags = c.SourceFlags.Union(tags)
		out = append(out, c)
	}
	return out
}

// Merge deduplicates candidates by app id, keeping first-seen order. Colliding
// records take the maximum of each numeric signal and the union of their
// flags; the first non-empty name wins.
func Merge(candidates ...crawler.GameCandidate) []crawler.GameCandidate {
	index := make(map[int64]int, len(candidates))
	out := make([]crawler.GameCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.AppID <= 0 {
			continue
		}
		i, seen := index[c.AppID]
		if !seen {
			c.SourceFlags = c.SourceFlags.Union(nil)
			c.WishlistSignal = max(c.WishlistSignal, c.Positive+c.Negative)
			index[c.AppID] = len(out)
			out = append(out, c)
			continue
		}
		out[i] = mergePair(out[i], c)
	}
	return out
}

func mergePair(a, b crawler.GameCandidate) crawler.GameCandidate {
	if a.Name == "" {
		a.Name = b.Name
	}
	a.CCU = max(a.CCU, b.CCU)
	a.Followers = max(a.Followers, b.Followers)
	a.Positive = max(a.Positive, b.Positive)
	a.Negative = max(a.Negative, b.Negative)
	a.WishlistSignal = max(a.WishlistSignal, b.WishlistSignal, a.Positive+a.Negative)
	a.SourceFlags = a.SourceFlags.Union(b.SourceFlags)
	a.ComingSoon = a.ComingSoon || b.ComingSoon
	if a.ReleaseDate == nil {
		a.ReleaseDate = b.ReleaseDate
	}
	a.Categories = unionStrings(a.Categories, b.Categories)
	if a.HeaderImage == "" {
		a.HeaderImage = b.HeaderImage
	}
	if a.ShortDescription == "" {
		a.ShortDescription = b.ShortDescription
	}
	if a.Price == "" {
		a.Price = b.Price
	}
	return a
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// DetailSource returns store details for one title.
type DetailSource interface {
	AppDetails(ctx context.Context, appID int64) (crawler.AppDetails, error)
}

// SignalSource returns community telemetry for one title.
type SignalSource interface {
	AppSignals(ctx context.Context, appID int64) (crawler.AppSignals, error)
}

// Enricher fills candidates in from the per-title detail lookup.
type Enricher struct {
	details     DetailSource
	signals     SignalSource
	concurrency int
	logger      *zap.Logger
}

// NewEnricher constructs an Enricher. signals may be nil; it is only
// consulted for candidates that arrived without a player count.
func NewEnricher(details DetailSource, signals SignalSource, concurrency int, logger *zap.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		details:     details,
		signals:     signals,
		concurrency: concurrency,
		logger:      logger.Named("enricher"),
	}
}

// Enrich looks up details for every candidate with bounded concurrency.
// Non-game entries and individual lookup failures are dropped. The result
// keeps input order. ErrNoCandidates is returned when nothing survived.
func (e *Enricher) Enrich(ctx context.Context, candidates []crawler.GameCandidate) ([]crawler.GameCandidate, error) {
	type slot struct {
		candidate crawler.GameCandidate
		ok        bool
	}
	slots := make([]slot, len(candidates))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, c := range candidates {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			enriched, ok := e.enrichOne(ctx, c)
			slots[i] = slot{candidate: enriched, ok: ok}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]crawler.GameCandidate, 0, len(candidates))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.candidate)
		}
	}
	if len(out) == 0 {
		return nil, crawler.ErrNoCandidates
	}
	return out, nil
}

func (e *Enricher) enrichOne(ctx context.Context, c crawler.GameCandidate) (crawler.GameCandidate, bool) {
	d, err := e.details.AppDetails(ctx, c.AppID)
	if err != nil {
		e.logger.Debug("detail lookup failed", zap.Int64("app_id", c.AppID), zap.Error(err))
		return c, false
	}
	if d.Type != "" && !strings.EqualFold(d.Type, "game") {
		return c, false
	}
	c = applyDetails(c, d)

	if e.signals != nil && c.CCU == 0 {
		s, err := e.signals.AppSignals(ctx, c.AppID)
		if err != nil {
			e.logger.Debug("signal lookup failed", zap.Int64("app_id", c.AppID), zap.Error(err))
		} else {
			c.CCU = max(c.CCU, s.CCU)
			c.Positive = max(c.Positive, s.Positive)
			c.Negative = max(c.Negative, s.Negative)
			c.WishlistSignal = max(c.WishlistSignal, c.Positive+c.Negative)
		}
	}
	return c, true
}

func applyDetails(c crawler.GameCandidate, d crawler.AppDetails) crawler.GameCandidate {
	if c.Name == "" {
		c.Name = d.Name
	}
	if d.HeaderImage != "" {
		c.HeaderImage = d.HeaderImage
	}
	if d.ShortDescription != "" {
		c.ShortDescription = d.ShortDescription
	}
	if d.Price != "" {
		c.Price = d.Price
	}
	if d.ReleaseDate != nil {
		c.ReleaseDate = d.ReleaseDate
	}
	c.ComingSoon = c.ComingSoon || d.ComingSoon
	c.Categories = unionStrings(c.Categories, d.Categories)
	if c.Followers == 0 {
		c.Followers = d.Recommendations
	}
	return c
}
