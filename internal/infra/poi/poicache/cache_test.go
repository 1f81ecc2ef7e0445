package poicache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

type countingSupplier struct {
	calls int
	pois  []itinerary.POI
	err   error
}

func (c *countingSupplier) Search(context.Context, itinerary.SearchQuery) ([]itinerary.POI, error) {
	c.calls++
	return c.pois, c.err
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]itinerary.POI, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []itinerary.POI, time.Duration) error {
	return errors.New("connection refused")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSupplierCachesResults(t *testing.T) {
	next := &countingSupplier{pois: []itinerary.POI{{ID: "node/1", Name: "Hawa Mahal"}}}
	cached := New(next, NewMemoryStore(), time.Hour, discard())
	ctx := context.Background()

	first, err := cached.Search(ctx, itinerary.SearchQuery{City: "Jaipur", Interests: []string{"history", "Food"}})
	require.NoError(t, err)
	second, err := cached.Search(ctx, itinerary.SearchQuery{City: "jaipur", Interests: []string{"food", "history"}})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, next.calls)

	_, err = cached.Search(ctx, itinerary.SearchQuery{City: "Jaipur", IndoorOnly: true})
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestSupplierSkipsEmptyAndFailedResults(t *testing.T) {
	next := &countingSupplier{}
	cached := New(next, NewMemoryStore(), time.Hour, discard())
	ctx := context.Background()

	_, err := cached.Search(ctx, itinerary.SearchQuery{City: "Nowhere"})
	require.NoError(t, err)
	_, err = cached.Search(ctx, itinerary.SearchQuery{City: "Nowhere"})
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)

	next.err = errors.New("upstream down")
	_, err = cached.Search(ctx, itinerary.SearchQuery{City: "Jaipur"})
	require.Error(t, err)
}

func TestSupplierToleratesBrokenStore(t *testing.T) {
	next := &countingSupplier{pois: []itinerary.POI{{ID: "node/1"}}}
	cached := New(next, brokenStore{}, time.Hour, discard())

	pois, err := cached.Search(context.Background(), itinerary.SearchQuery{City: "Jaipur"})
	require.NoError(t, err)
	require.Len(t, pois, 1)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []itinerary.POI{{ID: "a"}}, time.Minute))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
