package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-sentiment/internal/analyzer"
	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/store"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(newFakes()), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	f := newFakes()
	require.Equal(t, http.StatusOK, serve(newTestServer(f), http.MethodGet, "/readyz").Code)

	f.readyErr = errors.New("db down")
	rec := serve(newTestServer(f), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(newFakes())
	serve(srv, http.MethodGet, "/healthz")
	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_Sentiment_PassesOptions(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.sentiment.result = crawler.SentimentResult{Source: crawler.SourceSteamLive, Game: crawler.Game{AppID: 570, Name: "Dota 2"}}
	rec := serve(newTestServer(f), http.MethodGet, "/api/sentiment?q=dota&maxReviews=300&strict=1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dota", f.sentiment.query)
	assert.Equal(t, analyzer.QueryOptions{LimitReviews: 300, Strict: true}, f.sentiment.opts)

	var body crawler.SentimentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "steam-live", body.Source)
	assert.Equal(t, int64(570), body.Game.AppID)
}

func TestServer_Sentiment_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", fmt.Errorf("query too short: %w", crawler.ErrInvalidInput), http.StatusBadRequest},
		{"not found", fmt.Errorf("%q: %w", "zzz", crawler.ErrNotFound), http.StatusNotFound},
		{"no reviews", crawler.ErrNoReviews, http.StatusNotFound},
		{"upstream", &crawler.UpstreamError{Source: "appreviews", StatusCode: 503, Err: errors.New("unavailable")}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFakes()
			f.sentiment.err = tt.err
			rec := serve(newTestServer(f), http.MethodGet, "/api/sentiment?q=anything&strict=1")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestServer_Sentiment_InvalidMaxReviews(t *testing.T) {
	t.Parallel()

	f := newFakes()
	rec := serve(newTestServer(f), http.MethodGet, "/api/sentiment?q=dota&maxReviews=lots")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.sentiment.query)
}

func TestServer_CrawlerControl(t *testing.T) {
	t.Parallel()

	f := newFakes()
	srv := newTestServer(f)

	rec := serve(srv, http.MethodPost, "/api/crawler/start")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"started":true,"message":"Background crawler started."}`, rec.Body.String())

	rec = serve(srv, http.MethodPost, "/api/crawler/start")
	assert.JSONEq(t, `{"started":false,"message":"Crawler already running."}`, rec.Body.String())

	rec = serve(srv, http.MethodGet, "/api/crawler/status")
	var status crawler.CrawlerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)

	rec = serve(srv, http.MethodPost, "/api/crawler/stop")
	assert.Contains(t, rec.Body.String(), `"stopped":true`)
	rec = serve(srv, http.MethodPost, "/api/crawler/stop")
	assert.Contains(t, rec.Body.String(), `"stopped":false`)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(srv, http.MethodGet, "/api/crawler/start").Code)
}

func TestServer_ListGames(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.games.records = []crawler.StoredGameRecord{{AppID: 1, Name: "One"}, {AppID: 2, Name: "Two"}}
	srv := newTestServer(f)

	rec := serve(srv, http.MethodGet, "/api/crawler/games")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.DefaultListLimit, f.games.lastLimit)
	var body struct {
		Games []crawler.StoredGameRecord `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Games, 2)

	serve(srv, http.MethodGet, "/api/crawler/games?limit=5000")
	assert.Equal(t, maxGamesLimit, f.games.lastLimit)

	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/crawler/games?limit=-1").Code)

	f.games.listErr = errors.New("disk")
	assert.Equal(t, http.StatusInternalServerError, serve(srv, http.MethodGet, "/api/crawler/games").Code)
}

func TestServer_ListGamesEmptyIsArray(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(newFakes()), http.MethodGet, "/api/crawler/games")
	assert.JSONEq(t, `{"games":[]}`, rec.Body.String())
}

func TestServer_GetGame(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.games.records = []crawler.StoredGameRecord{{AppID: 42, Name: "Answer", Source: crawler.RecordSourceLive}}
	srv := newTestServer(f)

	rec := serve(srv, http.MethodGet, "/api/crawler/games/42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Answer"`)

	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/crawler/games/7").Code)
	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/crawler/games/abc").Code)
}

func TestServer_Trending(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.trending.payload = crawler.TrendingPayload{
		SchemaVersion: 2,
		Source:        crawler.SourceFallback,
		MostPopular:   []crawler.ScoredGame{},
		EmergingHits:  []crawler.ScoredGame{},
	}
	srv := newTestServer(f)

	rec := serve(srv, http.MethodGet, "/api/trending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.trending.lastForce)
	assert.Contains(t, rec.Body.String(), `"source":"fallback"`)

	serve(srv, http.MethodGet, "/api/trending?refresh=1")
	assert.True(t, f.trending.lastForce)

	f.trending.err = context.DeadlineExceeded
	assert.Equal(t, http.StatusGatewayTimeout, serve(srv, http.MethodGet, "/api/trending").Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(newFakes()), http.MethodGet, "/healthz")
	require.Equal(t, "id-default", rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "inbound")
	rec = httptest.NewRecorder()
	newTestServer(newFakes()).Handler().ServeHTTP(rec, req)
	require.Equal(t, "inbound", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv := NewServer(newFakes().deps(), Options{CORSOrigins: []string{"https://app.example.com"}}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/trending", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.sentiment.panics = true
	rec := serve(newTestServer(f), http.MethodGet, "/api/sentiment?q=boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestTimeoutMiddleware(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.sentiment.delay = 200 * time.Millisecond
	srv := NewServer(f.deps(), Options{RequestTimeout: 20 * time.Millisecond}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sentiment?q=slow", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "request timed out"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeSentiment struct {
	mu     sync.Mutex
	result crawler.SentimentResult
	err    error
	query  string
	opts   analyzer.QueryOptions
	panics bool
	delay  time.Duration
}

func (f *fakeSentiment) AnalyzeQuery(ctx context.Context, q string, opts analyzer.QueryOptions) (crawler.SentimentResult, error) {
	if f.panics {
		panic("synthesizer exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return crawler.SentimentResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query, f.opts = q, opts
	return f.result, f.err
}

type fakeCrawler struct {
	mu      sync.Mutex
	running bool
}

func (f *fakeCrawler) Start(context.Context) crawler.StartResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return crawler.StartResult{Started: false, Message: "Crawler already running."}
	}
	f.running = true
	return crawler.StartResult{Started: true, Message: "Background crawler started."}
}

func (f *fakeCrawler) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running
	f.running = false
	return was
}

func (f *fakeCrawler) Status() crawler.CrawlerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := crawler.IdleStatus()
	s.Running = f.running
	return s
}

type fakeGames struct {
	mu        sync.Mutex
	records   []crawler.StoredGameRecord
	listErr   error
	lastLimit int
}

func (f *fakeGames) ListGames(_ context.Context, limit int) ([]crawler.StoredGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeGames) GetGame(_ context.Context, appID int64) (crawler.StoredGameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.AppID == appID {
			return r, nil
		}
	}
	return crawler.StoredGameRecord{}, store.ErrNotFound
}

type fakeTrending struct {
	mu        sync.Mutex
	payload   crawler.TrendingPayload
	err       error
	lastForce bool
}

func (f *fakeTrending) GetTrending(_ context.Context, force bool) (crawler.TrendingPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastForce = force
	return f.payload, f.err
}

type fakeIDGen struct{}

func (fakeIDGen) NewID() (string, error) {
	return "id-default", nil
}

type fakes struct {
	sentiment *fakeSentiment
	crawler   *fakeCrawler
	games     *fakeGames
	trending  *fakeTrending
	readyErr  error
}

func newFakes() *fakes {
	return &fakes{
		sentiment: &fakeSentiment{},
		crawler:   &fakeCrawler{},
		games:     &fakeGames{},
		trending:  &fakeTrending{},
	}
}

func (f *fakes) deps() Dependencies {
	return Dependencies{
		Sentiment: f.sentiment,
		Crawler:   f.crawler,
		Games:     f.games,
		Trending:  f.trending,
		IDs:       fakeIDGen{},
		Ready:     func(context.Context) error { return f.readyErr },
	}
}

func newTestServer(f *fakes) *Server {
	return NewServer(f.deps(), Options{}, nil)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
