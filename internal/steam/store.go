package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

// Featured category keys of the store's featuredcategories endpoint.
const (
	CategoryNewReleases = "new_releases"
	CategoryTopSellers  = "top_sellers"
	CategoryComingSoon  = "coming_soon"
)

type featuredCategory struct {
	Items []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		HeaderImage string `json:"header_image"`
	} `json:"items"`
}

// FeaturedCandidates returns the items of the given featured categories in
// order, each title once. Items of the coming-soon category are marked
// ComingSoon.
func (c *Client) FeaturedCandidates(ctx context.Context, categories ...string) ([]crawler.GameCandidate, error) {
	q := url.Values{}
	q.Set("cc", c.cfg.CountryCode)
	q.Set("l", c.cfg.Language)
	rawURL := c.cfg.StoreBaseURL + "/api/featuredcategories?" + q.Encode()

	var payload map[string]json.RawMessage
	if err := c.getJSON(ctx, sourceFeatured, rawURL, &payload); err != nil {
		return nil, err
	}

	seen := map[int64]struct{}{}
	var out []crawler.GameCandidate
	for _, key := range categories {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var category featuredCategory
		if err := json.Unmarshal(raw, &category); err != nil {
			return nil, &crawler.UpstreamError{Source: sourceFeatured, URL: rawURL,
				Err: fmt.Errorf("decode %s: %w", key, err)}
		}
		for _, item := range category.Items {
			if item.ID <= 0 {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, crawler.GameCandidate{
				AppID:       item.ID,
				Name:        item.Name,
				HeaderImage: item.HeaderImage,
				ComingSoon:  key == CategoryComingSoon,
			})
		}
	}
	return out, nil
}

type appDetailsEnvelope struct {
	Success bool           `json:"success"`
	Data    appDetailsData `json:"data"`
}

type appDetailsData struct {
	Type             string       `json:"type"`
	Name             string       `json:"name"`
	IsFree           bool         `json:"is_free"`
	HeaderImage      string       `json:"header_image"`
	ShortDescription string       `json:"short_description"`
	PriceOverview    *searchPrice `json:"price_overview"`
	ReleaseDate      struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	Genres []struct {
		Description string `json:"description"`
	} `json:"genres"`
	Categories []struct {
		Description string `json:"description"`
	} `json:"categories"`
	Recommendations struct {
		Total flexInt `json:"total"`
	} `json:"recommendations"`
}

// AppDetails returns the store detail record for appID. An unknown app
// yields an error wrapping crawler.ErrNotFound.
func (c *Client) AppDetails(ctx context.Context, appID int64) (crawler.AppDetails, error) {
	id := strconv.FormatInt(appID, 10)
	q := url.Values{}
	q.Set("appids", id)
	q.Set("cc", c.cfg.CountryCode)
	q.Set("l", c.cfg.Language)
	rawURL := c.cfg.StoreBaseURL + "/api/appdetails?" + q.Encode()

	var payload map[string]appDetailsEnvelope
	if err := c.getJSON(ctx, sourceAppDetails, rawURL, &payload); err != nil {
		return crawler.AppDetails{}, err
	}
	envelope, ok := payload[id]
	if !ok || !envelope.Success {
		return crawler.AppDetails{}, fmt.Errorf("app %d details: %w", appID, crawler.ErrNotFound)
	}

	data := envelope.Data
	details := crawler.AppDetails{
		AppID:            appID,
		Type:             data.Type,
		Name:             data.Name,
		HeaderImage:      data.HeaderImage,
		ShortDescription: data.ShortDescription,
		ReleaseDate:      parseReleaseDate(data.ReleaseDate.Date),
		ComingSoon:       data.ReleaseDate.ComingSoon,
		Recommendations:  int64(data.Recommendations.Total),
		Price:            formatPrice(data.PriceOverview, data.IsFree),
	}
	for _, g := range data.Genres {
		if g.Description != "" {
			details.Categories = append(details.Categories, g.Description)
		}
	}
	for _, cat := range data.Categories {
		if cat.Description != "" {
			details.Categories = append(details.Categories, cat.Description)
		}
	}
	return details, nil
}
