package trending

import (
	"time"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

// sampleGame is a bundled candidate. releaseOffsetDays is relative to the
// day the sample is materialized; negative values are upcoming titles.
type sampleGame struct {
	appID             int64
	name              string
	ccu               int64
	followers         int64
	wishlist          int64
	releaseOffsetDays *int
	comingSoon        bool
	flags             []crawler.SourceFlag
	categories        []string
}

func offset(days int) *int { return &days }

var sampleGames = []sampleGame{
	{appID: 730, name: "Counter-Strike 2", ccu: 1_300_000, followers: 2_100_000, wishlist: 8_500_000,
		releaseOffsetDays: offset(4400), flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
		categories: []string{"Action", "Multi-player"}},
	{appID: 570, name: "Dota 2", ccu: 650_000, followers: 1_700_000, wishlist: 2_200_000,
		releaseOffsetDays: offset(4700), flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
		categories: []string{"Strategy", "Multi-player"}},
	{appID: 578080, name: "PUBG: BATTLEGROUNDS", ccu: 420_000, followers: 1_000_000, wishlist: 2_400_000,
		releaseOffsetDays: offset(2900), flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
		categories: []string{"Action", "Multi-player"}},
	{appID: 1172470, name: "Apex Legends", ccu: 180_000, followers: 900_000, wishlist: 800_000,
		releaseOffsetDays: offset(2000), flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
		categories: []string{"Action", "Free to Play"}},
	{appID: 1086940, name: "Baldur's Gate 3", ccu: 95_000, followers: 880_000, wishlist: 700_000,
		releaseOffsetDays: offset(800), flags: []crawler.SourceFlag{crawler.FlagTopPlayed},
		categories: []string{"RPG", "Single-player"}},
	{appID: 2357570, name: "Overwatch 2", ccu: 40_000, followers: 300_000, wishlist: 350_000,
		releaseOffsetDays: offset(900), categories: []string{"Action", "Free to Play"}},
	{appID: 3159330, name: "Assembly Line Rush", ccu: 14_000, followers: 50_000, wishlist: 90_000,
		releaseOffsetDays: offset(12), flags: []crawler.SourceFlag{crawler.FlagNewReleases},
		categories: []string{"Simulation", "Early Access"}},
	{appID: 3204110, name: "Tiny Lighthouse", ccu: 6_500, followers: 22_000, wishlist: 41_000,
		releaseOffsetDays: offset(30), flags: []crawler.SourceFlag{crawler.FlagNewReleases},
		categories: []string{"Adventure", "Indie"}},
	{appID: 3310220, name: "Deepwater Salvage", ccu: 3_200, followers: 9_000, wishlist: 15_000,
		releaseOffsetDays: offset(5), flags: []crawler.SourceFlag{crawler.FlagNewReleases, crawler.FlagTopPlayed},
		categories: []string{"Survival", "Co-op", "Early Access"}},
	{appID: 3402870, name: "Orbital Orchard", followers: 35_000, wishlist: 60_000,
		comingSoon: true, flags: []crawler.SourceFlag{crawler.FlagComingSoon, crawler.FlagUpcomingList},
		categories: []string{"Simulation", "Indie"}},
	{appID: 3455010, name: "Hollow Crown Tactics", followers: 18_000, wishlist: 27_000,
		releaseOffsetDays: offset(-21), comingSoon: true,
		flags:      []crawler.SourceFlag{crawler.FlagComingSoon, crawler.FlagUpcomingList},
		categories: []string{"Strategy", "Early Access"}},
	{appID: 3501990, name: "Neon Courier", ccu: 900, followers: 4_000, wishlist: 7_500,
		releaseOffsetDays: offset(60), categories: []string{"Racing", "Indie"}},
}

// SampleCandidates materializes the bundled sample as of now.
func SampleCandidates(now time.Time) []crawler.GameCandidate {
	today := now.UTC().Truncate(day)
	out := make([]crawler.GameCandidate, 0, len(sampleGames))
	for _, g := range sampleGames {
		c := crawler.GameCandidate{
			AppID:          g.appID,
			Name:           g.name,
			CCU:            g.ccu,
			Followers:      g.followers,
			WishlistSignal: g.wishlist,
			ComingSoon:     g.comingSoon,
			SourceFlags:    crawler.SourceFlags{},
			Categories:     append([]string{}, g.categories...),
		}
		for _, f := range g.flags {
			c.SourceFlags[f] = true
		}
		if g.releaseOffsetDays != nil {
			released := today.AddDate(0, 0, -*g.releaseOffsetDays)
			c.ReleaseDate = &released
		}
		out = append(out, c)
	}
	return out
}
