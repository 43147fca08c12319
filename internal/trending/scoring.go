package trending

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

// Scoring constants.
const (
	defaultDaysOld = 365
	newWindowDays  = 180

	bonusEarlyAccess  = 0.04
	bonusNewReleases  = 0.06
	bonusComingSoon   = 0.08
	bonusHotList      = 0.05
	bonusUpcomingList = 0.05

	earlyAccessCategory = "early access"
	scorePrecision      = 4
)

const day = 24 * time.Hour

// DaysOld is the whole number of days since release, at least 1. Unknown
// release dates count as a year old.
func DaysOld(release *time.Time, now time.Time) int {
	if release == nil {
		return defaultDaysOld
	}
	days := int(math.Floor(float64(now.Sub(*release)) / float64(day)))
	return max(1, days)
}

func freshnessBoost(daysOld int) float64 {
	return 1 / math.Sqrt(float64(daysOld))
}

func log10p1(v float64) float64 {
	return math.Log10(v + 1)
}

// PopularityScore blends log-scaled players, followers and wishlist signal
// with a small freshness term.
func PopularityScore(c crawler.GameCandidate, now time.Time) float64 {
	daysOld := DaysOld(c.ReleaseDate, now)
	score := 0.5*log10p1(float64(c.CCU)) +
		0.33*log10p1(float64(c.Followers)) +
		0.13*log10p1(float64(c.WishlistSignal)) +
		0.04*freshnessBoost(daysOld)
	return crawler.Round(score, scorePrecision)
}

// EmergingScore favors fresh titles with momentum relative to their size,
// damped for titles with very large followings, plus categorical bonuses.
func EmergingScore(c crawler.GameCandidate, now time.Time) float64 {
	daysOld := DaysOld(c.ReleaseDate, now)
	ccu := float64(c.CCU)
	followers := float64(c.Followers)

	momentumByFollowers := math.Log10(35*ccu/(followers+200) + 1)
	momentumByAge := math.Log10(7*ccu/float64(daysOld+2) + 1)
	interestSignal := math.Log10(0.8*followers + float64(c.WishlistSignal) + 1)
	giantPenalty := 1 / (1 + math.Log10(followers+20))

	base := 0.33*freshnessBoost(daysOld) +
		0.25*momentumByFollowers +
		0.22*momentumByAge +
		0.2*interestSignal

	return crawler.Round(base*giantPenalty+bonuses(c, now), scorePrecision)
}

func bonuses(c crawler.GameCandidate, now time.Time) float64 {
	var b float64
	if hasCategory(c.Categories, earlyAccessCategory) {
		b += bonusEarlyAccess
	}
	if c.SourceFlags.Has(crawler.FlagNewReleases) {
		b += bonusNewReleases
	}
	if isComingSoon(c, now) {
		b += bonusComingSoon
	}
	if c.SourceFlags.Has(crawler.FlagTopPlayed) {
		b += bonusHotList
	}
	if c.SourceFlags.Has(crawler.FlagUpcomingList) {
		b += bonusUpcomingList
	}
	return b
}

func isComingSoon(c crawler.GameCandidate, now time.Time) bool {
	if c.ComingSoon || c.SourceFlags.Has(crawler.FlagComingSoon) {
		return true
	}
	return c.ReleaseDate != nil && c.ReleaseDate.After(now)
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}

// IsNewOrUpcoming reports whether c is unreleased, recent, or came from a
// new-release or coming-soon list.
func IsNewOrUpcoming(c crawler.GameCandidate, now time.Time) bool {
	return isComingSoon(c, now) ||
		DaysOld(c.ReleaseDate, now) <= newWindowDays ||
		c.SourceFlags.Has(crawler.FlagNewReleases)
}

// Score derives every score for c as of now.
func Score(c crawler.GameCandidate, now time.Time) crawler.ScoredGame {
	c.DaysOld = DaysOld(c.ReleaseDate, now)
	c.ComingSoon = isComingSoon(c, now)
	return crawler.ScoredGame{
		GameCandidate:   c,
		PopularityScore: PopularityScore(c, now),
		EmergingScore:   EmergingScore(c, now),
		IsNewOrUpcoming: IsNewOrUpcoming(c, now),
	}
}

// ScoreAll scores every candidate.
func ScoreAll(candidates []crawler.GameCandidate, now time.Time) []crawler.ScoredGame {
	out := make([]crawler.ScoredGame, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Score(c, now))
	}
	return out
}

// Rank returns the top size games by popularity, and the top size games by
// emerging score among those that are new, upcoming, or on the hot list.
func Rank(games []crawler.ScoredGame, size int) (popular, emerging []crawler.ScoredGame) {
	popular = topBy(games, size, func(g crawler.ScoredGame) float64 { return g.PopularityScore })

	eligible := make([]crawler.ScoredGame, 0, len(games))
	for _, g := range games {
		if g.IsNewOrUpcoming || g.SourceFlags.Has(crawler.FlagTopPlayed) {
			eligible = append(eligible, g)
		}
	}
	emerging = topBy(eligible, size, func(g crawler.ScoredGame) float64 { return g.EmergingScore })
	return popular, emerging
}

func topBy(games []crawler.ScoredGame, size int, score func(crawler.ScoredGame) float64) []crawler.ScoredGame {
	out := append([]crawler.ScoredGame{}, games...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].AppID < out[j].AppID
	})
	if size > 0 && len(out) > size {
		out = out[:size]
	}
	return out
}
