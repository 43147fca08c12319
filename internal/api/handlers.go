package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-sentiment/internal/analyzer"
	"github.com/JakeFAU/steam-sentiment/internal/crawler"
	"github.com/JakeFAU/steam-sentiment/internal/store"
)

const maxGamesLimit = 500

// getSentiment handles GET /api/sentiment?q=&maxReviews=&strict=1.
func (s *Server) getSentiment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxReviews := 0
	if raw := strings.TrimSpace(q.Get("maxReviews")); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			writeError(w, http.StatusBadRequest, "maxReviews must be a non-negative integer")
			return
		}
		maxReviews = val
	}
	opts := analyzer.QueryOptions{
		LimitReviews: maxReviews,
		Strict:       q.Get("strict") == "1",
	}

	result, err := s.deps.Sentiment.AnalyzeQuery(r.Context(), q.Get("q"), opts)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("sentiment query failed", zap.String("query", q.Get("q")), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) startCrawler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Crawler.Start(r.Context()))
}

func (s *Server) stopCrawler(w http.ResponseWriter, _ *http.Request) {
	stopped := s.deps.Crawler.Stop()
	msg := "Crawler is not running."
	if stopped {
		msg = "Crawler stop requested."
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped, "message": msg})
}

func (s *Server) crawlerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Crawler.Status())
}

// listGames handles GET /api/crawler/games?limit=.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(val, maxGamesLimit)
	}
	games, err := s.deps.Games.ListGames(r.Context(), limit)
	if err != nil {
		s.logger.Error("list games failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []crawler.StoredGameRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	appID, err := strconv.ParseInt(chi.URLParam(r, "appId"), 10, 64)
	if err != nil || appID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid appId")
		return
	}
	record, err := s.deps.Games.GetGame(r.Context(), appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no stored analysis for app %d", appID))
			return
		}
		s.logger.Error("get game failed", zap.Int64("app_id", appID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// getTrending handles GET /api/trending?refresh=1.
func (s *Server) getTrending(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh")
	force := refresh == "1" || strings.EqualFold(refresh, "true")
	payload, err := s.deps.Trending.GetTrending(r.Context(), force)
	if err != nil {
		s.logger.Error("trending failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
