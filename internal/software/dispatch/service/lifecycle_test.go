package service

import (
	"context"
	"math"
	"testing"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, store *memStore, id string, kind job.Kind, mode job.PaymentMode) *job.Job {
	t.Helper()
	j, err := job.NewJob("JN_"+id, "requester-1", kind, mode, 15000,
		job.Stop{Point: testOrigin, Address: "Origin " + id, ContactName: "Sender", ContactPhone: "+224611111111"},
		job.Stop{Point: testDestination, Address: "Destination " + id, ContactName: "Receiver", ContactPhone: "+224622222222"},
	)
	require.NoError(t, err)
	j.ID = id
	store.mu.Lock()
	store.jobs[id] = j
	store.mu.Unlock()
	return j
}

func claimFor(t *testing.T, svc ports.DispatchService, jobID, workerID string) {
	t.Helper()
	res, err := svc.Claim(context.Background(), ports.ClaimInput{JobID: jobID, WorkerID: workerID})
	require.NoError(t, err)
	require.Equal(t, ports.ClaimOutcomeClaimed, res.Outcome)
}

func TestCreateJobFixesPriceFromDistance(t *testing.T) {
	svc, store, notifier := newTestService(t)

	res, err := svc.CreateJob(context.Background(), ports.CreateJobInput{
		RequesterID: "requester-1",
		Kind:        job.KindDelivery,
		PaymentMode: job.PaymentPrepaid,
		Origin: ports.StopInput{
			Latitude: testOrigin.Lat, Longitude: testOrigin.Lng,
			Address: "Kaloum", ContactName: "Sender", ContactPhone: "+224611111111",
		},
		Destination: ports.StopInput{
			Latitude: testDestination.Lat, Longitude: testDestination.Lng,
			Address: "Ratoma", ContactName: "Receiver", ContactPhone: "+224622222222",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", res.Status)
	assert.NotEmpty(t, res.JobID)
	assert.NotEmpty(t, res.JobNumber)

	dist := geo.HaversineKM(testOrigin, testDestination)
	assert.InDelta(t, math.Round(5000+2000*dist), res.Price, 0.001)
	assert.Equal(t, int(math.Ceil(dist*2.5)), res.EstimatedMinutes)

	stored := store.jobs[res.JobID]
	require.NotNil(t, stored)
	assert.Equal(t, res.Price, stored.Price)

	require.Len(t, notifier.byKind("job_created"), 1)
}

func TestCreateJobNotifiesNearbyWorkers(t *testing.T) {
	svc, _, notifier, index := newTestServiceWithIndex(t)

	// two online workers in the index, only one within the board radius
	now := time.Now().UTC()
	require.NoError(t, index.Update(context.Background(), "worker-near", pointNear(testOrigin, 1.0), now))
	require.NoError(t, index.Update(context.Background(), "worker-far", pointNear(testOrigin, 50), now))

	_, err := svc.CreateJob(context.Background(), ports.CreateJobInput{
		RequesterID: "requester-1",
		Kind:        job.KindDelivery,
		PaymentMode: job.PaymentPrepaid,
		Origin: ports.StopInput{
			Latitude: testOrigin.Lat, Longitude: testOrigin.Lng,
			Address: "Kaloum", ContactName: "Sender", ContactPhone: "+224611111111",
		},
		Destination: ports.StopInput{
			Latitude: testDestination.Lat, Longitude: testDestination.Lng,
			Address: "Ratoma", ContactName: "Receiver", ContactPhone: "+224622222222",
		},
	})
	require.NoError(t, err)

	notes := notifier.byKind("new_job_nearby")
	require.Len(t, notes, 1)
	assert.Equal(t, "worker-near", notes[0].RecipientID)
	assert.InDelta(t, 1.0, notes[0].Payload["distance_km"].(float64), 0.05)
}

func TestAdvancePrepaidSettlesOnCompleted(t *testing.T) {
	svc, store, notifier := newTestService(t)
	seedJob(t, store, "job-1", job.KindRide, job.PaymentPrepaid)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	res, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusStarted,
	})
	require.NoError(t, err)
	assert.False(t, res.Terminal)

	res, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, res.Terminal)

	w := store.workers["worker-1"]
	assert.Equal(t, worker.WorkerStatusAvailable, w.Status, "prepaid completion frees the worker")
	assert.Equal(t, 1, w.TotalJobs)
	assert.InDelta(t, 15000, w.TotalEarnings, 0.001)

	require.Len(t, notifier.byKind("job_completed"), 1)
}

func TestAdvanceCashCompletedKeepsWorkerBusyUntilPaid(t *testing.T) {
	svc, store, notifier := newTestService(t)
	seedJob(t, store, "job-1", job.KindRide, job.PaymentCashOnCompletion)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	_, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusStarted,
	})
	require.NoError(t, err)

	res, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	require.NoError(t, err)
	assert.False(t, res.Terminal, "cash job still owes the settlement")

	w := store.workers["worker-1"]
	assert.Equal(t, worker.WorkerStatusBusy, w.Status)
	assert.Zero(t, w.TotalJobs)

	paid, err := svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-1", WorkerID: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)
	assert.InDelta(t, 15000, paid.Earnings, 0.001)

	w = store.workers["worker-1"]
	assert.Equal(t, worker.WorkerStatusAvailable, w.Status)
	assert.Equal(t, 1, w.TotalJobs)
	assert.InDelta(t, 15000, w.TotalEarnings, 0.001)

	require.Len(t, notifier.byKind("job_paid"), 1)
}

func TestAdvanceRetryDoesNotSettleTwice(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedJob(t, store, "job-1", job.KindRide, job.PaymentPrepaid)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	_, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusStarted,
	})
	require.NoError(t, err)
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	require.NoError(t, err)

	// a duplicated request (client retry, double tap) is refused outright
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	assert.ErrorIs(t, err, job.ErrIllegalTransition)

	w := store.workers["worker-1"]
	assert.Equal(t, 1, w.TotalJobs, "earnings must be credited exactly once")
	assert.InDelta(t, 15000, w.TotalEarnings, 0.001)
}

func TestMarkPaidRetryDoesNotSettleTwice(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedJob(t, store, "job-1", job.KindRide, job.PaymentCashOnCompletion)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	_, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusStarted,
	})
	require.NoError(t, err)
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-1", WorkerID: "worker-1"})
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-1", WorkerID: "worker-1"})
	assert.ErrorIs(t, err, job.ErrAlreadyTerminal)

	w := store.workers["worker-1"]
	assert.Equal(t, 1, w.TotalJobs, "the settlement must not double-credit")
	assert.InDelta(t, 15000, w.TotalEarnings, 0.001)
}

func TestAdvanceRejectsSkipsAndStrangers(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedJob(t, store, "job-1", job.KindRide, job.PaymentPrepaid)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	seedWorker(t, store, "worker-2", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	// skipping STARTED
	_, err := svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCompleted,
	})
	assert.ErrorIs(t, err, job.ErrIllegalTransition)

	// someone else's job
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-2", Next: job.StatusStarted,
	})
	assert.ErrorIs(t, err, ErrNotAssignee)

	// cancellation and settlement have dedicated endpoints
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusCancelled,
	})
	assert.ErrorIs(t, err, job.ErrIllegalTransition)
	_, err = svc.Advance(context.Background(), ports.AdvanceInput{
		JobID: "job-1", WorkerID: "worker-1", Next: job.StatusPaid,
	})
	assert.ErrorIs(t, err, job.ErrIllegalTransition)
}

func TestCancelFreesWorkerAndNotifiesCounterparty(t *testing.T) {
	svc, store, notifier := newTestService(t)
	seedJob(t, store, "job-1", job.KindDelivery, job.PaymentPrepaid)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)
	claimFor(t, svc, "job-1", "worker-1")

	res, err := svc.CancelJob(context.Background(), "job-1", "requester-1", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", res.Status)

	j := store.jobs["job-1"]
	assert.Equal(t, job.StatusCancelled, j.Status)
	require.NotNil(t, j.CancelReason)
	assert.Equal(t, "plans changed", *j.CancelReason)

	// the worker is released with no earnings credited
	w := store.workers["worker-1"]
	assert.Equal(t, worker.WorkerStatusAvailable, w.Status)
	assert.Zero(t, w.TotalJobs)
	assert.Zero(t, w.TotalEarnings)

	notes := notifier.byKind("job_cancelled")
	require.Len(t, notes, 1)
	assert.Equal(t, "worker-1", notes[0].RecipientID, "the caller is not notified about their own cancel")
}

func TestCancelRejectsStrangersAndTerminalJobs(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedJob(t, store, "job-1", job.KindDelivery, job.PaymentPrepaid)

	_, err := svc.CancelJob(context.Background(), "job-1", "nosy-stranger", "")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.CancelJob(context.Background(), "job-1", "requester-1", "first")
	require.NoError(t, err)

	_, err = svc.CancelJob(context.Background(), "job-1", "requester-1", "second")
	assert.ErrorIs(t, err, job.ErrAlreadyTerminal)
}

func TestMarkPaidGuards(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedWorker(t, store, "worker-1", worker.WorkerStatusAvailable)

	// prepaid jobs never owe a settlement
	seedJob(t, store, "job-prepaid", job.KindRide, job.PaymentPrepaid)
	claimFor(t, svc, "job-prepaid", "worker-1")
	_, err := svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-prepaid", WorkerID: "worker-1"})
	assert.ErrorIs(t, err, job.ErrSettlementNotOwed)

	// cash jobs owe it only after COMPLETED
	seedWorker(t, store, "worker-2", worker.WorkerStatusAvailable)
	seedJob(t, store, "job-cash", job.KindRide, job.PaymentCashOnCompletion)
	claimFor(t, svc, "job-cash", "worker-2")
	_, err = svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-cash", WorkerID: "worker-2"})
	assert.ErrorIs(t, err, job.ErrSettlementTooEarly)

	// and only to the assignee
	_, err = svc.MarkPaid(context.Background(), ports.MarkPaidInput{JobID: "job-cash", WorkerID: "worker-1"})
	assert.ErrorIs(t, err, ErrNotAssignee)
}
