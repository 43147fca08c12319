// Package crawler defines core types shared across subsystems and hosts the
// background crawl orchestrator.
package crawler

import (
	"time"
)

// Result sources reported to API callers.
const (
	SourceSteamLive = "steam-live"
	SourceFallback  = "fallback"
)

// Stored record sources.
const (
	RecordSourceLive  = "live"
	RecordSourceError = "error"
)

// Review is a single user review as returned by the review source.
type Review struct {
	Text                  string  `json:"review"`
	VotedUp               bool    `json:"votedUp"`
	VotesUp               int     `json:"votesUp"`
	WeightedVoteScore     float64 `json:"weightedVoteScore"`
	PlaytimeAtReviewHours float64 `json:"playtimeAtReviewHours"`
}

// ReviewPage is one cursor page from the review source.
type ReviewPage struct {
	Reviews []Review
	// Cursor is the continuation token for the next page; empty when the
	// source did not return one.
	Cursor string
	// TotalReviews is the total reported in the page summary, 0 when unknown.
	TotalReviews int
}

// CrawlStats describes one collection run.
type CrawlStats struct {
	PagesFetched  int  `json:"pagesFetched"`
	Capped        bool `json:"capped"`
	HardCap       int  `json:"hardCap"`
	TotalReported *int `json:"totalReported"`
}

// ReviewBatch is what a collector hands to the synthesizer.
type ReviewBatch struct {
	Reviews []Review
	Stats   CrawlStats
}

// CrawlSummary is the crawl block attached to results and stored records.
type CrawlSummary struct {
	Comprehensive        bool     `json:"comprehensive"`
	PagesFetched         int      `json:"pagesFetched"`
	ReviewsCollected     int      `json:"reviewsCollected"`
	HardCap              int      `json:"hardCap,omitempty"`
	TotalReportedBySteam *int     `json:"totalReportedBySteam"`
	CoveragePercent      *float64 `json:"coveragePercent"`
}

// ThemeCount is a theme name with the number of reviews that mention it.
type ThemeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// KeyPhrase is a recurring token with its frequency.
type KeyPhrase struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// Quote is a representative review excerpt.
type Quote struct {
	Text                  string  `json:"text"`
	VotedUp               bool    `json:"votedUp"`
	VotesUp               int     `json:"votesUp"`
	WeightedVoteScore     float64 `json:"weightedVoteScore"`
	PlaytimeAtReviewHours float64 `json:"playtimeAtReviewHours"`
}

// RecurringFeedback groups themes and key phrases per polarity.
type RecurringFeedback struct {
	PositiveThemes     []ThemeCount `json:"positiveThemes"`
	NegativeThemes     []ThemeCount `json:"negativeThemes"`
	PositiveKeyPhrases []KeyPhrase  `json:"positiveKeyPhrases"`
	NegativeKeyPhrases []KeyPhrase  `json:"negativeKeyPhrases"`
}

// RepresentativeQuotes holds up to three quotes per polarity.
type RepresentativeQuotes struct {
	Positive []Quote `json:"positive"`
	Negative []Quote `json:"negative"`
}

// SentimentSummary is the headline label plus short highlight strings.
type SentimentSummary struct {
	Label        string   `json:"label"`
	Highlights   []string `json:"highlights"`
	Improvements []string `json:"improvements"`
}

// SentimentAnalysis is the structured output of the synthesizer.
// PositiveCount + NegativeCount always equals TotalReviewsAnalyzed.
type SentimentAnalysis struct {
	Query                     string               `json:"query"`
	SentimentScore            float64              `json:"sentimentScore"`
	TotalReviewsAnalyzed      int                  `json:"totalReviewsAnalyzed"`
	PositiveCount             int                  `json:"positiveCount"`
	NegativeCount             int                  `json:"negativeCount"`
	PositivePercent           float64              `json:"positivePercent"`
	Strengths                 []ThemeCount         `json:"strengths"`
	PainPoints                []ThemeCount         `json:"painPoints"`
	RecurringFeedback         RecurringFeedback    `json:"recurringFeedback"`
	RepresentativeQuotes      RepresentativeQuotes `json:"representativeQuotes"`
	ActionableRecommendations []string             `json:"actionableRecommendations"`
	Summary                   SentimentSummary     `json:"summary"`
}

// Game identifies a title resolved from search or the catalog.
type Game struct {
	AppID     int64  `json:"appId"`
	Name      string `json:"name"`
	TinyImage string `json:"tinyImage,omitempty"`
	Price     string `json:"price"`
}

// CatalogEntry is one title discovered for the background crawl.
type CatalogEntry struct {
	AppID int64  `json:"appId"`
	Name  string `json:"name"`
}

// SentimentResult is returned by on-demand sentiment queries.
type SentimentResult struct {
	Source         string            `json:"source"`
	FallbackReason string            `json:"fallbackReason,omitempty"`
	Game           Game              `json:"game"`
	Crawl          CrawlSummary      `json:"crawl"`
	Analysis       SentimentAnalysis `json:"analysis"`
}

// SourceFlag tags which discovery source contributed a candidate.
type SourceFlag string

// Provenance flags attached by the candidate sources.
const (
	FlagTopPlayed    SourceFlag = "fromTopPlayed"
	FlagNewReleases  SourceFlag = "fromNewReleases"
	FlagComingSoon   SourceFlag = "fromComingSoon"
	FlagUpcomingList SourceFlag = "fromUpcomingList"
)

// SourceFlags is a set of provenance tags.
type SourceFlags map[SourceFlag]bool

// Has reports whether flag is set.
func (f SourceFlags) Has(flag SourceFlag) bool {
	return f != nil && f[flag]
}

// Union returns a new set containing the flags of both sets.
func (f SourceFlags) Union(other SourceFlags) SourceFlags {
	out := make(SourceFlags, len(f)+len(other))
	for k, v := range f {
		if v {
			out[k] = true
		}
	}
	for k, v := range other {
		if v {
			out[k] = true
		}
	}
	return out
}

// GameCandidate is a catalog entry produced by aggregation and enriched by
// the detail lookup.
type GameCandidate struct {
	AppID            int64       `json:"appId"`
	Name             string      `json:"name"`
	CCU              int64       `json:"ccu"`
	Followers        int64       `json:"followers"`
	Positive         int64       `json:"positive"`
	Negative         int64       `json:"negative"`
	WishlistSignal   int64       `json:"wishlistSignal"`
	ReleaseDate      *time.Time  `json:"releaseDate"`
	DaysOld          int         `json:"daysOld"`
	ComingSoon       bool        `json:"comingSoon"`
	SourceFlags      SourceFlags `json:"sourceFlags"`
	Categories       []string    `json:"categories"`
	HeaderImage      string      `json:"headerImage,omitempty"`
	ShortDescription string      `json:"shortDescription,omitempty"`
	Price            string      `json:"price,omitempty"`
}

// ScoredGame is a candidate with its derived scores.
type ScoredGame struct {
	GameCandidate
	PopularityScore float64 `json:"popularityScore"`
	EmergingScore   float64 `json:"emergingScore"`
	IsNewOrUpcoming bool    `json:"isNewOrUpcoming"`
}

// Algorithm describes how a trending payload was computed.
type Algorithm struct {
	Description string   `json:"description"`
	DataSources []string `json:"dataSources"`
}

// TrendingPayload is the daily trending report.
type TrendingPayload struct {
	SchemaVersion  int          `json:"schemaVersion"`
	GeneratedAt    time.Time    `json:"generatedAt"`
	Source         string       `json:"source"`
	FallbackReason string       `json:"fallbackReason,omitempty"`
	Algorithm      Algorithm    `json:"algorithm"`
	MostPopular    []ScoredGame `json:"mostPopular"`
	EmergingHits   []ScoredGame `json:"emergingHits"`
}

// CrawlState is a phase of the orchestrator state machine.
type CrawlState string

// Orchestrator phases.
const (
	StateIdle        CrawlState = "idle"
	StateDiscovering CrawlState = "discovering"
	StateCrawling    CrawlState = "crawling"
	StateCompleted   CrawlState = "completed"
	StateFailed      CrawlState = "failed"
)

// CrawlerStatus is the process-wide progress record of the background crawl.
type CrawlerStatus struct {
	Running    bool       `json:"running"`
	State      CrawlState `json:"state"`
	// LastResult carries the terminal state (completed or failed) of the most
	// recent sweep; State itself returns to idle once a sweep ends.
	LastResult CrawlState `json:"lastResult,omitempty"`
	RunID      string     `json:"runId,omitempty"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	Total      int        `json:"total"`
	Scanned    int        `json:"scanned"`
	Stored     int        `json:"stored"`
	Failed     int        `json:"failed"`
	Message    string     `json:"message"`
}

// IdleStatus is the status of a crawler that has never run.
func IdleStatus() CrawlerStatus {
	return CrawlerStatus{State: StateIdle, Message: "idle"}
}

// StoredGameRecord is the per-title result persisted by the orchestrator.
// A new crawl overwrites the whole record.
type StoredGameRecord struct {
	AppID    int64              `json:"appId"`
	Name     string             `json:"name"`
	Source   string             `json:"source"`
	Error    string             `json:"error,omitempty"`
	Crawl    CrawlSummary       `json:"crawl"`
	Analysis *SentimentAnalysis `json:"analysis"`
	StoredAt time.Time          `json:"storedAt"`
}

// CrawlDatabase is the single document holding stored records and status.
type CrawlDatabase struct {
	UpdatedAt *time.Time                  `json:"updatedAt"`
	Games     map[string]StoredGameRecord `json:"games"`
	Crawler   CrawlerStatus               `json:"crawler"`
}

// EmptyCrawlDatabase returns a database with no records and an idle crawler.
func EmptyCrawlDatabase() CrawlDatabase {
	return CrawlDatabase{
		Games:   map[string]StoredGameRecord{},
		Crawler: IdleStatus(),
	}
}

// StartResult is returned by a crawler start request.
type StartResult struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// FetchRequest captures everything needed to fetch an upstream URL.
type FetchRequest struct {
	URL     string
	Headers map[string]string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// AppDetails is the per-title store detail used to enrich trending candidates.
type AppDetails struct {
	AppID            int64
	Type             string
	Name             string
	HeaderImage      string
	ShortDescription string
	Price            string
	ReleaseDate      *time.Time
	ComingSoon       bool
	Categories       []string
	Recommendations  int64
}

// AppSignals is per-title community telemetry.
type AppSignals struct {
	AppID    int64
	CCU      int64
	Positive int64
	Negative int64
}
