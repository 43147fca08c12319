// Package steam is the upstream client for the Steam store, review and
// SteamSpy APIs.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

// Default upstream endpoints.
const (
	DefaultStoreBaseURL    = "https://store.steampowered.com"
	DefaultSteamSpyBaseURL = "https://steamspy.com/api.php"
)

// Source names reported in UpstreamError.
const (
	sourceSearch     = "storesearch"
	sourceReviews    = "appreviews"
	sourceSteamSpy   = "steamspy"
	sourceFeatured   = "featuredcategories"
	sourceAppDetails = "appdetails"
)

// Config points the client at its upstreams.
type Config struct {
	StoreBaseURL    string
	ReviewsBaseURL  string
	SteamSpyBaseURL string
	// Language and CountryCode scope search, reviews and prices.
	Language    string
	CountryCode string
}

// Client talks to the Steam store and SteamSpy through a crawler.Fetcher.
type Client struct {
	cfg     Config
	fetcher crawler.Fetcher
	logger  *zap.Logger
}

// New constructs a Client. Empty URLs fall back to the public endpoints.
func New(cfg Config, fetcher crawler.Fetcher, logger *zap.Logger) *Client {
	if cfg.StoreBaseURL == "" {
		cfg.StoreBaseURL = DefaultStoreBaseURL
	}
	if cfg.ReviewsBaseURL == "" {
		cfg.ReviewsBaseURL = cfg.StoreBaseURL
	}
	if cfg.SteamSpyBaseURL == "" {
		cfg.SteamSpyBaseURL = DefaultSteamSpyBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "english"
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "us"
	}
	cfg.StoreBaseURL = strings.TrimRight(cfg.StoreBaseURL, "/")
	cfg.ReviewsBaseURL = strings.TrimRight(cfg.ReviewsBaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, fetcher: fetcher, logger: logger.Named("steam")}
}

// getJSON fetches rawURL and decodes the body into out. Transport failures,
// non-2xx statuses and undecodable bodies all yield *crawler.UpstreamError.
func (c *Client) getJSON(ctx context.Context, source, rawURL string, out any) error {
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     rawURL,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", source, err)
		}
		return &crawler.UpstreamError{Source: source, URL: rawURL, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &crawler.UpstreamError{
			Source:     source,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &crawler.UpstreamError{Source: source, URL: rawURL, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("decode body: %w", err)}
	}
	c.logger.Debug("upstream fetch",
		zap.String("source", source),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", resp.Duration),
	)
	return nil
}

type searchResponse struct {
	Items []struct {
		ID        int64        `json:"id"`
		Name      string       `json:"name"`
		TinyImage string       `json:"tiny_image"`
		IsFree    bool         `json:"is_free"`
		Price     *searchPrice `json:"price"`
	} `json:"items"`
}

type searchPrice struct {
	FinalFormatted string `json:"final_formatted"`
}

// SearchGame returns the first store search hit for query.
func (c *Client) SearchGame(ctx context.Context, query string) (crawler.Game, error) {
	q := url.Values{}
	q.Set("term", query)
	q.Set("l", c.cfg.Language)
	q.Set("cc", c.cfg.CountryCode)
	rawURL := c.cfg.StoreBaseURL + "/api/storesearch/?" + q.Encode()

	var payload searchResponse
	if err := c.getJSON(ctx, sourceSearch, rawURL, &payload); err != nil {
		return crawler.Game{}, err
	}
	if len(payload.Items) == 0 {
		return crawler.Game{}, fmt.Errorf("%q: %w", query, crawler.ErrNotFound)
	}
	first := payload.Items[0]
	return crawler.Game{
		AppID:     first.ID,
		Name:      first.Name,
		TinyImage: first.TinyImage,
		Price:     formatPrice(first.Price, first.IsFree),
	}, nil
}

func formatPrice(price *searchPrice, free bool) string {
	switch {
	case price != nil && price.FinalFormatted != "":
		return price.FinalFormatted
	case free:
		return "Free"
	default:
		return "N/A"
	}
}

type reviewsResponse struct {
	Success      int    `json:"success"`
	Cursor       string `json:"cursor"`
	QuerySummary struct {
		TotalReviews flexInt `json:"total_reviews"`
	} `json:"query_summary"`
	Reviews []struct {
		Review            string    `json:"review"`
		VotedUp           bool      `json:"voted_up"`
		VotesUp           flexInt   `json:"votes_up"`
		WeightedVoteScore flexFloat `json:"weighted_vote_score"`
		Author            struct {
			PlaytimeAtReview flexFloat `json:"playtime_at_review"`
		} `json:"author"`
	} `json:"reviews"`
}

// FetchReviewPage fetches one cursor page of English reviews for appID.
func (c *Client) FetchReviewPage(
	ctx context.Context,
	appID int64,
	cursor string,
	pageSize int,
) (crawler.ReviewPage, error) {
	q := url.Values{}
	q.Set("json", "1")
	q.Set("language", c.cfg.Language)
	q.Set("purchase_type", "all")
	q.Set("filter", "all")
	q.Set("num_per_page", strconv.Itoa(pageSize))
	q.Set("cursor", cursor)
	rawURL := fmt.Sprintf("%s/appreviews/%d?%s", c.cfg.ReviewsBaseURL, appID, q.Encode())

	var payload reviewsResponse
	if err := c.getJSON(ctx, sourceReviews, rawURL, &payload); err != nil {
		return crawler.ReviewPage{}, err
	}
	if payload.Success != 1 {
		return crawler.ReviewPage{}, &crawler.UpstreamError{
			Source: sourceReviews,
			URL:    rawURL,
			Err:    fmt.Errorf("success=%d", payload.Success),
		}
	}

	page := crawler.ReviewPage{
		Reviews:      make([]crawler.Review, 0, len(payload.Reviews)),
		Cursor:       payload.Cursor,
		TotalReviews: int(payload.QuerySummary.TotalReviews),
	}
	for _, r := range payload.Reviews {
		page.Reviews = append(page.Reviews, crawler.Review{
			Text:              r.Review,
			VotedUp:           r.VotedUp,
			VotesUp:           int(r.VotesUp),
			WeightedVoteScore: float64(r.WeightedVoteScore),
			// Steam reports minutes.
			PlaytimeAtReviewHours: float64(r.Author.PlaytimeAtReview) / 60,
		})
	}
	return page, nil
}
