package steam

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

type spyEntry struct {
	AppID    flexInt `json:"appid"`
	Name     string  `json:"name"`
	CCU      flexInt `json:"ccu"`
	Positive flexInt `json:"positive"`
	Negative flexInt `json:"negative"`
}

func (c *Client) spyURL(params url.Values) string {
	return c.cfg.SteamSpyBaseURL + "?" + params.Encode()
}

func (c *Client) spyList(ctx context.Context, request string) ([]spyEntry, error) {
	var payload map[string]spyEntry
	rawURL := c.spyURL(url.Values{"request": {request}})
	if err := c.getJSON(ctx, sourceSteamSpy, rawURL, &payload); err != nil {
		return nil, err
	}
	entries := make([]spyEntry, 0, len(payload))
	for key, entry := range payload {
		if entry.AppID == 0 {
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				entry.AppID = flexInt(id)
			}
		}
		if entry.AppID <= 0 {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AppID < entries[j].AppID })
	return entries, nil
}

// DiscoverCatalog lists the full SteamSpy catalog, falling back to the
// two-week top list when the full listing fails.
func (c *Client) DiscoverCatalog(ctx context.Context) ([]crawler.CatalogEntry, error) {
	entries, err := c.spyList(ctx, "all")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("discover catalog: %w", ctx.Err())
		}
		c.logger.Warn("full catalog unavailable; using top list", zap.Error(err))
		entries, err = c.spyList(ctx, "top100in2weeks")
		if err != nil {
			return nil, fmt.Errorf("discover catalog: %w", err)
		}
	}
	out := make([]crawler.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = crawler.FallbackAppName(int64(e.AppID))
		}
		out = append(out, crawler.CatalogEntry{AppID: int64(e.AppID), Name: name})
	}
	return out, nil
}

// TopPlayed returns the two-week hot list ordered by concurrent players.
func (c *Client) TopPlayed(ctx context.Context) ([]crawler.GameCandidate, error) {
	entries, err := c.spyList(ctx, "top100in2weeks")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CCU > entries[j].CCU })
	out := make([]crawler.GameCandidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, crawler.GameCandidate{
			AppID:          int64(e.AppID),
			Name:           e.Name,
			CCU:            int64(e.CCU),
			Positive:       int64(e.Positive),
			Negative:       int64(e.Negative),
			WishlistSignal: int64(e.Positive) + int64(e.Negative),
		})
	}
	return out, nil
}

// AppSignals returns SteamSpy telemetry for one title.
func (c *Client) AppSignals(ctx context.Context, appID int64) (crawler.AppSignals, error) {
	var entry spyEntry
	rawURL := c.spyURL(url.Values{"request": {"appdetails"}, "appid": {strconv.FormatInt(appID, 10)}})
	if err := c.getJSON(ctx, sourceSteamSpy, rawURL, &entry); err != nil {
		return crawler.AppSignals{}, err
	}
	return crawler.AppSignals{
		AppID:    appID,
		CCU:      int64(entry.CCU),
		Positive: int64(entry.Positive),
		Negative: int64(entry.Negative),
	}, nil
}
