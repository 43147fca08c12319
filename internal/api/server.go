package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/analyzer"
	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/metrics"
	"github.com/JakeFAU/steam-sentiment/internal/store"
)

// SentimentService answers on-demand sentiment queries.
type SentimentService interface {
	AnalyzeQuery(ctx context.Context, query string, opts analyzer.QueryOptions) (crawler.SentimentResult, error)
}

// CrawlController drives the background crawl.
type CrawlController interface {
	Start(ctx context.Context) crawler.StartResult
	Stop() bool
	Status() crawler.CrawlerStatus
}

// GameRecords reads stored per-title results.
type GameRecords interface {
	ListGames(ctx context.Context, limit int) ([]crawler.StoredGameRecord, error)
	GetGame(ctx context.Context, appID int64) (crawler.StoredGameRecord, error)
}

// TrendingService returns the daily trending report.
type TrendingService interface {
	GetTrending(ctx context.Context, forceRefresh bool) (crawler.TrendingPayload, error)
}

// Dependencies are the services the handlers call.
type Dependencies struct {
	Sentiment SentimentService
	Crawler   CrawlController
	Games     GameRecords
	Trending  TrendingService
	IDs       crawler.IDGenerator
	// Ready reports whether downstream storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Options tune the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the services.
type Server struct {
	router chi.Router
	deps   Dependencies
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(deps.IDs))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}
	if opts.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sentiment", s.getSentiment)
		r.Get("/trending", s.getTrending)
		r.Route("/crawler", func(r chi.Router) {
			r.Post("/start", s.startCrawler)
			r.Post("/stop", s.stopCrawler)
			r.Get("/status", s.crawlerStatus)
			r.Get("/games", s.listGames)
			r.Get("/games/{appId}", s.getGame)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, crawler.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, crawler.ErrNotFound), errors.Is(err, crawler.ErrNoReviews), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case crawler.IsUpstream(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
