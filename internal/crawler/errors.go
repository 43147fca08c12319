package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks client input that is rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a search yields no match.
	ErrNotFound = errors.New("game not found")
	// ErrNoReviews is returned when a title has no reviews to analyse.
	ErrNoReviews = errors.New("no reviews available for this game")
	// ErrAllSourcesFailed is returned when every discovery source failed.
	ErrAllSourcesFailed = errors.New("all candidate sources failed")
	// ErrNoCandidates is returned when no candidate survived enrichment.
	ErrNoCandidates = errors.New("no candidates enriched")
	// ErrAlreadyRunning is returned when a crawl is already in flight.
	ErrAlreadyRunning = errors.New("crawler already running")
)

// UpstreamError is a non-success response or transport failure from an
// external source.
type UpstreamError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (%d) %s: %v", e.Source, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("%s request failed %s: %v", e.Source, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from an external source, including
// not-found searches.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoReviews)
}
