package geoindex

import (
	"context"
	"testing"
	"time"

	"courier-dispatch/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conakry = geo.Point{Lat: 9.6412, Lng: -13.5784}

func northOf(p geo.Point, km float64) geo.Point {
	return geo.Point{Lat: p.Lat + km/111.19, Lng: p.Lng}
}

func TestNearbyFiltersByRadiusAndSorts(t *testing.T) {
	idx := NewMemoryIndex(10 * time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, idx.Update(ctx, "close", northOf(conakry, 1), now))
	require.NoError(t, idx.Update(ctx, "closer", northOf(conakry, 0.2), now))
	require.NoError(t, idx.Update(ctx, "far", northOf(conakry, 20), now))

	got, err := idx.Nearby(ctx, conakry, 5, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "closer", got[0].WorkerID)
	assert.Equal(t, "close", got[1].WorkerID)
	assert.InDelta(t, 0.2, got[0].DistanceKM, 0.05)
}

func TestNearbyHonorsLimit(t *testing.T) {
	idx := NewMemoryIndex(10 * time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, idx.Update(ctx, "a", northOf(conakry, 0.1), now))
	require.NoError(t, idx.Update(ctx, "b", northOf(conakry, 0.2), now))
	require.NoError(t, idx.Update(ctx, "c", northOf(conakry, 0.3), now))

	got, err := idx.Nearby(ctx, conakry, 5, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].WorkerID)
}

func TestNearbySkipsStaleEntries(t *testing.T) {
	idx := NewMemoryIndex(10 * time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, idx.Update(ctx, "fresh", northOf(conakry, 0.5), now))
	require.NoError(t, idx.Update(ctx, "stale", northOf(conakry, 0.5), now.Add(-time.Hour)))

	got, err := idx.Nearby(ctx, conakry, 5, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].WorkerID)
}

func TestUpdateKeepsTheNewerReport(t *testing.T) {
	idx := NewMemoryIndex(10 * time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	newer := northOf(conakry, 1)
	require.NoError(t, idx.Update(ctx, "w", newer, now))
	// an out-of-order update must not move the worker backwards
	require.NoError(t, idx.Update(ctx, "w", northOf(conakry, 3), now.Add(-time.Minute)))

	got, err := idx.Nearby(ctx, conakry, 5, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].DistanceKM, 0.05)
}

func TestRemoveDropsTheWorker(t *testing.T) {
	idx := NewMemoryIndex(10 * time.Minute)
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "w", conakry, time.Now().UTC()))
	require.NoError(t, idx.Remove(ctx, "w"))
	require.NoError(t, idx.Remove(ctx, "never-seen"))

	got, err := idx.Nearby(ctx, conakry, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
