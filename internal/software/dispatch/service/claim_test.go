package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOrigin      = geo.Point{Lat: 9.6412, Lng: -13.5784}
	testDestination = geo.Point{Lat: 9.5092, Lng: -13.7122}
)

func TestClaimExactlyOneWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPendingJob(t, store, "job-1", testOrigin, testDestination)

	const racers = 16
	results := make([]ports.ClaimResult, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		workerID := fmt.Sprintf("worker-%02d", i)
		seedWorker(t, store, workerID, worker.WorkerStatusAvailable)

		wg.Add(1)
		go func(i int, workerID string) {
			defer wg.Done()
			results[i], errs[i] = svc.Claim(context.Background(), ports.ClaimInput{
				JobID:    "job-1",
				WorkerID: workerID,
			})
		}(i, workerID)
	}
	wg.Wait()

	var claimed, taken int
	winner := ""
	for i, res := range results {
		require.NoError(t, errs[i])
		switch res.Outcome {
		case ports.ClaimOutcomeClaimed:
			claimed++
			winner = fmt.Sprintf("worker-%02d", i)
			require.NotNil(t, res.Details)
		case ports.ClaimOutcomeAlreadyTaken:
			taken++
			assert.Nil(t, res.Details)
		default:
			t.Fatalf("unexpected outcome %s", res.Outcome)
		}
	}
	assert.Equal(t, 1, claimed, "exactly one racer may win")
	assert.Equal(t, racers-1, taken)

	j := store.jobs["job-1"]
	require.NotNil(t, j.WorkerID)
	assert.Equal(t, winner, *j.WorkerID)
	assert.Equal(t, job.StatusAssigned, j.Status)

	// only the winner is busy; every loser's flip was rolled back
	for id, w := range store.workers {
		if id == winner {
			assert.Equal(t, worker.WorkerStatusBusy, w.Status)
		} else {
			assert.Equal(t, worker.WorkerStatusAvailable, w.Status, "loser %s must stay available", id)
		}
	}
}

func TestClaimBusyWorkerNeverTouchesTheJob(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPendingJob(t, store, "job-1", testOrigin, testDestination)
	seedWorker(t, store, "worker-1", worker.WorkerStatusBusy)

	res, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: "job-1", WorkerID: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimOutcomeWorkerBusy, res.Outcome)
	assert.Nil(t, res.Details)

	j := store.jobs["job-1"]
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Nil(t, j.WorkerID)
}

func TestClaimOfflineWorkerRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPendingJob(t, store, "job-1", testOrigin, testDestination)
	seedWorker(t, store, "worker-1", worker.WorkerStatusOffline)

	res, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: "job-1", WorkerID: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimOutcomeWorkerBusy, res.Outcome)
}

func TestClaimUnknownJobRollsBackTheWorkerFlip(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)

	_, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: "job-missing", WorkerID: "worker-1"})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	assert.Equal(t, worker.WorkerStatusAvailable, store.workers["worker-1"].Status)
}

func TestClaimRevealsFullDetailsAndNotifiesRequester(t *testing.T) {
	svc, store, notifier := newTestService(t)
	seedPendingJob(t, store, "job-1", testOrigin, testDestination)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)

	res, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: "job-1", WorkerID: "worker-1"})
	require.NoError(t, err)
	require.Equal(t, ports.ClaimOutcomeClaimed, res.Outcome)
	require.NotNil(t, res.Details)

	// the claim unlocks what the board redacts
	assert.Equal(t, "Destination job-1", res.Details.DestinationAddress)
	assert.Equal(t, "Receiver", res.Details.DestinationContact)
	assert.Equal(t, "+224622222222", res.Details.DestinationPhone)
	assert.Equal(t, "Sender", res.Details.OriginContact)
	assert.InDelta(t, testDestination.Lat, res.Details.DestinationLocation.Latitude, 1e-9)

	claimedNotes := notifier.byKind("job_claimed")
	require.Len(t, claimedNotes, 1)
	assert.Equal(t, "requester-1", claimedNotes[0].RecipientID)
	assert.Equal(t, "job-1", claimedNotes[0].JobID)
}
