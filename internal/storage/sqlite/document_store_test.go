package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-sentiment/internal/storage"
)

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)

	_, err = Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), Table: "bad-name;"})
	require.Error(t, err)
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sentiment.db")
	store, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)

	_, err = store.Get(ctx, "reviews-db")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Put(ctx, "reviews-db", []byte(`{"v":1}`)))
	require.NoError(t, store.Put(ctx, "reviews-db", []byte(`{"v":2}`)))
	require.NoError(t, store.Put(ctx, "trending-2026-10-16", []byte(`{"t":true}`)))

	got, err := store.Get(ctx, "reviews-db")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err = reopened.Get(ctx, "trending-2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, `{"t":true}`, string(got))

	var count int
	require.NoError(t, reopened.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count))
	assert.Equal(t, 2, count)
}
