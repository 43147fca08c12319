package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	Init()
	ok := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	missing := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))
	before := testutil.CollectAndCount(httpRequestDurationSeconds)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/crawler/games/{appId}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "appId") == "0" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	for _, target := range []string{"/api/crawler/games/570", "/api/crawler/games/730", "/api/crawler/games/0"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.InDelta(t, ok+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), 0)
	assert.InDelta(t, missing+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404")), 0)
	// One series for the pattern, not one per app id.
	assert.Equal(t, before+1, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestMiddlewareUnknownRoute(t *testing.T) {
	Init()
	before := testutil.CollectAndCount(httpRequestDurationSeconds)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpRequestDurationSeconds), before)
}
