package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://store.steampowered.com/api/storesearch", "store.steampowered.com"},
		{"standard https", "https://SteamSpy.com/api.php", "steamspy.com"},
		{"no scheme", "store.steampowered.com/appreviews/570", "store.steampowered.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if upstreamRequestsTotal == nil || reviewPagesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil ||
		crawlerTitlesTotal == nil || trendingRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("test.com", "200"))
	ObserveUpstream("https://test.com/x", "200", 10)
	if val := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("test.com", "200")); val != before+1 {
		t.Errorf("Expected upstreamRequestsTotal to grow by 1, got %f", val-before)
	}
}

func TestObserveReviewPage(t *testing.T) {
	Init()
	pages := testutil.ToFloat64(reviewPagesTotal)
	reviews := testutil.ToFloat64(reviewsCollectedTotal)

	ObserveReviewPage(100)
	ObserveReviewPage(0)

	if got := testutil.ToFloat64(reviewPagesTotal) - pages; got != 2 {
		t.Errorf("Expected 2 pages observed, got %f", got)
	}
	if got := testutil.ToFloat64(reviewsCollectedTotal) - reviews; got != 100 {
		t.Errorf("Expected 100 reviews observed, got %f", got)
	}
}

func TestCrawlerGauges(t *testing.T) {
	SetCrawlerRunning(true)
	if val := testutil.ToFloat64(crawlerRunning); val != 1 {
		t.Errorf("Expected crawlerRunning to be 1, got %f", val)
	}
	SetCrawlerRunning(false)
	if val := testutil.ToFloat64(crawlerRunning); val != 0 {
		t.Errorf("Expected crawlerRunning to be 0, got %f", val)
	}

	before := testutil.ToFloat64(crawlerTitlesTotal.WithLabelValues("stored"))
	ObserveTitle("stored")
	if val := testutil.ToFloat64(crawlerTitlesTotal.WithLabelValues("stored")); val != before+1 {
		t.Errorf("Expected crawlerTitlesTotal to grow by 1, got %f", val-before)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://store.steampowered.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
