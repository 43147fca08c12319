package reviews

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-sentiment/internal/crawler"
)

type fakeSource struct {
	pages   []crawler.ReviewPage
	errAt   int
	err     error
	cursors []string
}

func (f *fakeSource) FetchReviewPage(_ context.Context, _ int64, cursor string, _ int) (crawler.ReviewPage, error) {
	call := len(f.cursors)
	f.cursors = append(f.cursors, cursor)
	if f.err != nil && call == f.errAt {
		return crawler.ReviewPage{}, f.err
	}
	if call >= len(f.pages) {
		return crawler.ReviewPage{}, nil
	}
	return f.pages[call], nil
}

func makeReviews(n int) []crawler.Review {
	out := make([]crawler.Review, n)
	for i := range out {
		out[i] = crawler.Review{Text: fmt.Sprintf("review %d", i), VotedUp: i%2 == 0}
	}
	return out
}

func TestCollectStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []crawler.ReviewPage{
		{Reviews: makeReviews(100), Cursor: "c1"},
		{Reviews: makeReviews(50), Cursor: "c2"},
	}}
	c := New(src, Config{}, nil)

	batch, err := c.Collect(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, batch.Reviews, 150)
	assert.Equal(t, 3, batch.Stats.PagesFetched)
	assert.False(t, batch.Stats.Capped)
	assert.Nil(t, batch.Stats.TotalReported)
	assert.Equal(t, []string{"*", "c1", "c2"}, src.cursors)
}

func TestCollectTruncatesToLimit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []crawler.ReviewPage{
		{Reviews: makeReviews(100), Cursor: "c1", TotalReviews: 1000},
		{Reviews: makeReviews(100), Cursor: "c2"},
	}}
	c := New(src, Config{MaxReviews: 1000}, nil)

	batch, err := c.Collect(context.Background(), 10, 130)
	require.NoError(t, err)
	assert.Len(t, batch.Reviews, 130)
	assert.True(t, batch.Stats.Capped)
	assert.Equal(t, 130, batch.Stats.HardCap)
	assert.Equal(t, 2, batch.Stats.PagesFetched)
}

func TestCollectHardCapBoundsLimit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []crawler.ReviewPage{
		{Reviews: makeReviews(100), Cursor: "c1"},
	}}
	c := New(src, Config{MaxReviews: 40}, nil)

	batch, err := c.Collect(context.Background(), 10, 500)
	require.NoError(t, err)
	assert.Len(t, batch.Reviews, 40)
	assert.Equal(t, 40, batch.Stats.HardCap)
	assert.True(t, batch.Stats.Capped)
}

func TestCollectStopsWhenReportedTotalReached(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []crawler.ReviewPage{
		{Reviews: makeReviews(100), Cursor: "c1", TotalReviews: 180},
		{Reviews: makeReviews(100), Cursor: "c2", TotalReviews: 999},
		{Reviews: makeReviews(100), Cursor: "c3"},
	}}
	c := New(src, Config{}, nil)

	batch, err := c.Collect(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, batch.Reviews, 200)
	assert.False(t, batch.Stats.Capped)
	require.NotNil(t, batch.Stats.TotalReported)
	assert.Equal(t, 180, *batch.Stats.TotalReported)
	assert.Equal(t, 2, batch.Stats.PagesFetched)
}

func TestCollectStopsOnRepeatedOrMissingCursor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		cursor string
	}{
		{"missing cursor", ""},
		{"repeated cursor", "*"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := &fakeSource{pages: []crawler.ReviewPage{
				{Reviews: makeReviews(10), Cursor: tc.cursor},
				{Reviews: makeReviews(10), Cursor: "never"},
			}}
			c := New(src, Config{}, nil)

			batch, err := c.Collect(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Len(t, batch.Reviews, 10)
			assert.Equal(t, 1, batch.Stats.PagesFetched)
		})
	}
}

func TestCollectRespectsPageCeiling(t *testing.T) {
	t.Parallel()

	pages := make([]crawler.ReviewPage, 10)
	for i := range pages {
		pages[i] = crawler.ReviewPage{Reviews: makeReviews(5), Cursor: fmt.Sprintf("c%d", i+1)}
	}
	src := &fakeSource{pages: pages}
	c := New(src, Config{MaxPages: 3}, nil)

	batch, err := c.Collect(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Stats.PagesFetched)
	assert.Len(t, batch.Reviews, 15)
}

func TestCollectPropagatesPageFailure(t *testing.T) {
	t.Parallel()

	upstream := &crawler.UpstreamError{Source: "reviews", StatusCode: 503, Err: errors.New("unavailable")}
	src := &fakeSource{
		pages: []crawler.ReviewPage{{Reviews: makeReviews(100), Cursor: "c1"}},
		errAt: 1,
		err:   upstream,
	}
	c := New(src, Config{}, nil)

	batch, err := c.Collect(context.Background(), 10, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, batch.Reviews)
	assert.Len(t, src.cursors, 2)
}

func TestCollectNeverExceedsEffectiveCap(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, 1, 99, 100, 101, 250, 10000} {
		src := &fakeSource{pages: []crawler.ReviewPage{
			{Reviews: makeReviews(100), Cursor: "a"},
			{Reviews: makeReviews(100), Cursor: "b"},
			{Reviews: makeReviews(100), Cursor: "c"},
		}}
		c := New(src, Config{MaxReviews: 200}, nil)
		batch, err := c.Collect(context.Background(), 1, limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch.Reviews), c.EffectiveCap(limit), "limit=%d", limit)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	total := 400
	summary := Summarize(crawler.ReviewBatch{
		Reviews: makeReviews(100),
		Stats:   crawler.CrawlStats{PagesFetched: 1, Capped: true, HardCap: 100, TotalReported: &total},
	})
	assert.False(t, summary.Comprehensive)
	require.NotNil(t, summary.CoveragePercent)
	assert.InDelta(t, 25.0, *summary.CoveragePercent, 1e-9)

	complete := Summarize(crawler.ReviewBatch{
		Reviews: makeReviews(3),
		Stats:   crawler.CrawlStats{PagesFetched: 2, HardCap: 100},
	})
	assert.True(t, complete.Comprehensive)
	assert.Nil(t, complete.CoveragePercent)
	assert.Equal(t, 3, complete.ReviewsCollected)
}
