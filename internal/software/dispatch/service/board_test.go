package service

import (
	"context"
	"fmt"
	"testing"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointNear offsets a center point by roughly km kilometers northward.
func pointNear(center geo.Point, km float64) geo.Point {
	return geo.Point{Lat: center.Lat + km/111.19, Lng: center.Lng}
}

func TestBoardRequiresKnownPosition(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)

	_, err := svc.Board(context.Background(), ports.BoardInput{WorkerID: "worker-1"})
	assert.ErrorIs(t, err, ErrNoKnownPosition)
}

func TestBoardSortsByDistanceAndHonorsRadius(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	seedPosition(t, store, "worker-1", testOrigin)

	seedPendingJob(t, store, "job-far", pointNear(testOrigin, 3.5), testDestination)
	seedPendingJob(t, store, "job-near", pointNear(testOrigin, 0.5), testDestination)
	seedPendingJob(t, store, "job-mid", pointNear(testOrigin, 2.0), testDestination)
	// outside the default 5 km radius
	seedPendingJob(t, store, "job-out", pointNear(testOrigin, 9.0), testDestination)

	res, err := svc.Board(context.Background(), ports.BoardInput{WorkerID: "worker-1"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "job-near", res.Entries[0].JobID)
	assert.Equal(t, "job-mid", res.Entries[1].JobID)
	assert.Equal(t, "job-far", res.Entries[2].JobID)
	assert.InDelta(t, 0.5, res.Entries[0].DistanceToOrigin, 0.05)
}

func TestBoardEntriesAreRedacted(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	seedPosition(t, store, "worker-1", testOrigin)
	j := seedPendingJob(t, store, "job-1", pointNear(testOrigin, 1.0), testDestination)

	res, err := svc.Board(context.Background(), ports.BoardInput{WorkerID: "worker-1"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	entry := res.Entries[0]
	assert.Equal(t, j.JobNumber, entry.JobNumber)
	assert.Equal(t, j.Origin.Address, entry.OriginAddress)
	assert.Equal(t, j.Price, entry.EstimatedEarnings, "the worker keeps the full fixed price")
	assert.Greater(t, entry.EstimatedMinutes, 0)
	assert.NotEmpty(t, entry.PostedAt)

	// the distance math is exposed even though the destination is not
	trip := geo.HaversineKM(j.Origin.Point, j.Destination.Point)
	assert.InDelta(t, trip, entry.TripDistanceKM, 0.001)
	assert.InDelta(t, entry.DistanceToOrigin+trip, entry.CombinedDistanceKM, 0.001)
}

func TestBoardHidesJustClaimedJobs(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "watcher", worker.WorkerStatusAvailable)
	seedPosition(t, store, "watcher", testOrigin)
	seedWorker(t, store, "claimer", worker.WorkerStatusAvailable)

	seedPendingJob(t, store, "job-1", pointNear(testOrigin, 0.5), testDestination)
	seedPendingJob(t, store, "job-2", pointNear(testOrigin, 1.0), testDestination)

	res, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: "job-1", WorkerID: "claimer"})
	require.NoError(t, err)
	require.Equal(t, ports.ClaimOutcomeClaimed, res.Outcome)

	board, err := svc.Board(context.Background(), ports.BoardInput{WorkerID: "watcher"})
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "job-2", board.Entries[0].JobID)
}

func TestBoardClampsLimit(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	seedPosition(t, store, "worker-1", testOrigin)

	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("job-%02d", i)
		seedPendingJob(t, store, id, pointNear(testOrigin, 0.1+float64(i)*0.1), testDestination)
	}

	// asking for more than the policy cap still gets the cap
	res, err := svc.Board(context.Background(), ports.BoardInput{WorkerID: "worker-1", Limit: 500})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 20)

	// an explicit small limit is respected
	res, err = svc.Board(context.Background(), ports.BoardInput{WorkerID: "worker-1", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 5)
}
