package service

import (
	"context"
	"testing"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCenter = geo.Point{Lat: 9.6412, Lng: -13.5784}

func TestGoOnlineSeedsPositionAndIndex(t *testing.T) {
	h := newTrackHarness(t)
	h.seedWorker(t, "worker-1", worker.WorkerStatusOffline)

	res, err := h.svc.GoOnline(context.Background(), ports.GoOnlineInput{
		WorkerID: "worker-1", Latitude: testCenter.Lat, Longitude: testCenter.Lng,
	})
	require.NoError(t, err)
	assert.Equal(t, "AVAILABLE", res.Status)

	assert.Equal(t, worker.WorkerStatusAvailable, h.store.workers["worker-1"].Status)
	require.NotNil(t, h.store.positions["worker-1"])
	assert.Equal(t, 1, h.store.archived)

	nearby, err := h.index.Nearby(context.Background(), testCenter, 1, 10)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "worker-1", nearby[0].WorkerID)
}

func TestGoOnlineGuards(t *testing.T) {
	h := newTrackHarness(t)
	h.seedWorker(t, "worker-1", worker.WorkerStatusAvailable)

	// already online
	_, err := h.svc.GoOnline(context.Background(), ports.GoOnlineInput{
		WorkerID: "worker-1", Latitude: testCenter.Lat, Longitude: testCenter.Lng,
	})
	assert.ErrorIs(t, err, worker.ErrInvalidStatusSwitch)

	// unknown worker
	_, err = h.svc.GoOnline(context.Background(), ports.GoOnlineInput{
		WorkerID: "ghost", Latitude: testCenter.Lat, Longitude: testCenter.Lng,
	})
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	// bad coordinates
	h.seedWorker(t, "worker-2", worker.WorkerStatusOffline)
	_, err = h.svc.GoOnline(context.Background(), ports.GoOnlineInput{
		WorkerID: "worker-2", Latitude: 123, Longitude: 0,
	})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestGoOfflineRemovesFromIndex(t *testing.T) {
	h := newTrackHarness(t)
	h.seedWorker(t, "worker-1", worker.WorkerStatusOffline)

	_, err := h.svc.GoOnline(context.Background(), ports.GoOnlineInput{
		WorkerID: "worker-1", Latitude: testCenter.Lat, Longitude: testCenter.Lng,
	})
	require.NoError(t, err)

	res, err := h.svc.GoOffline(context.Background(), ports.GoOfflineInput{WorkerID: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, "OFFLINE", res.Status)
	assert.Equal(t, worker.WorkerStatusOffline, h.store.workers["worker-1"].Status)

	nearby, err := h.index.Nearby(context.Background(), testCenter, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, nearby)

	// already offline
	_, err = h.svc.GoOffline(context.Background(), ports.GoOfflineInput{WorkerID: "worker-1"})
	assert.ErrorIs(t, err, worker.ErrInvalidStatusSwitch)
}

func TestGoOfflineRefusedWhileBusy(t *testing.T) {
	h := newTrackHarness(t)
	h.seedWorker(t, "worker-1", worker.WorkerStatusBusy)
	h.seedAssignedJob(t, "job-1", "worker-1", testCenter, offsetKM(testCenter, 10))

	_, err := h.svc.GoOffline(context.Background(), ports.GoOfflineInput{WorkerID: "worker-1"})
	assert.ErrorIs(t, err, worker.ErrWorkerHasActiveJob)
	assert.Equal(t, worker.WorkerStatusBusy, h.store.workers["worker-1"].Status)
}
