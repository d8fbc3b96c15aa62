package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/geocode"
	"courier-dispatch/internal/general/geoindex"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for the Postgres repos and the unit of
// work. WithinTx serializes callers and restores a snapshot on error, so the
// rollback semantics the claim path relies on hold here too.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*job.Job
	workers   map[string]*worker.Worker
	positions map[string]*geo.PositionReport
	events    []*job.Event
	archived  int
	nextJobID int
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      make(map[string]*job.Job),
		workers:   make(map[string]*worker.Worker),
		positions: make(map[string]*geo.PositionReport),
	}
}

func snapshot[V any](m map[string]*V) map[string]*V {
	out := make(map[string]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := snapshot(s.jobs)
	workers := snapshot(s.workers)
	positions := snapshot(s.positions)
	if err := fn(ctx); err != nil {
		s.jobs, s.workers, s.positions = jobs, workers, positions
		return err
	}
	return nil
}

// ---- JobRepository ----

func (s *memStore) CreateJob(_ context.Context, j *job.Job) error {
	if j.ID == "" {
		s.nextJobID++
		j.ID = fmt.Sprintf("job-%03d", s.nextJobID)
	}
	c := *j
	s.jobs[j.ID] = &c
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*job.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return j, nil
}

func (s *memStore) GetActiveForWorker(_ context.Context, workerID string) (*job.Job, error) {
	for _, j := range s.jobs {
		if j.WorkerID != nil && *j.WorkerID == workerID && j.Status.Active(j.PaymentMode) {
			return j, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListPendingNear(_ context.Context, origin geo.Point, radiusKM float64, limit int) ([]ports.PendingJobRow, error) {
	rows := make([]ports.PendingJobRow, 0)
	for _, j := range s.jobs {
		if j.Status != job.StatusPending || j.WorkerID != nil {
			continue
		}
		dist := geo.HaversineKM(origin, j.Origin.Point)
		if dist > radiusKM {
			continue
		}
		rows = append(rows, ports.PendingJobRow{Job: j, DistanceKM: dist})
	}
	sort.Slice(rows, func(i, k int) bool { return rows[i].DistanceKM < rows[k].DistanceKM })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *memStore) ListPendingOlderThan(_ context.Context, age time.Duration, limit int) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-age)
	out := make([]*job.Job, 0)
	for _, j := range s.jobs {
		if j.Status == job.StatusPending && j.WorkerID == nil && j.CreatedAt.Before(cutoff) {
			out = append(out, j)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) ClaimPending(_ context.Context, jobID, workerID string, claimedAt time.Time) (bool, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if j.Status != job.StatusPending || j.WorkerID != nil {
		return false, nil
	}
	wid := workerID
	at := claimedAt
	j.WorkerID = &wid
	j.ClaimedAt = &at
	j.Status = job.StatusAssigned
	j.UpdatedAt = claimedAt
	return true, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status job.Status, ts time.Time) error {
	j, ok := s.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if !j.Status.CanTransitionTo(status, j.Kind, j.PaymentMode) {
		return job.ErrIllegalTransition
	}
	switch status {
	case job.StatusPickedUp:
		j.PickedUpAt = &ts
	case job.StatusCompleted:
		j.CompletedAt = &ts
	case job.StatusPaid:
		j.PaidAt = &ts
	case job.StatusCancelled:
		j.CancelledAt = &ts
	}
	j.Status = status
	j.UpdatedAt = ts
	return nil
}

func (s *memStore) Cancel(_ context.Context, id, reason string, cancelledAt time.Time) error {
	j, ok := s.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if j.Status.Terminal(j.PaymentMode) {
		return job.ErrAlreadyTerminal
	}
	j.Status = job.StatusCancelled
	j.CancelledAt = &cancelledAt
	if reason != "" {
		r := reason
		j.CancelReason = &r
	}
	j.UpdatedAt = cancelledAt
	return nil
}

func (s *memStore) MarkPaid(_ context.Context, id string, paidAt time.Time) error {
	j, ok := s.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if j.Status == job.StatusPaid {
		return job.ErrAlreadyTerminal
	}
	if j.PaymentMode != job.PaymentCashOnCompletion {
		return job.ErrSettlementNotOwed
	}
	if j.Status != job.StatusCompleted {
		return job.ErrSettlementTooEarly
	}
	j.Status = job.StatusPaid
	j.PaidAt = &paidAt
	j.UpdatedAt = paidAt
	return nil
}

// ---- JobEventRepository ----

func (s *memStore) Append(_ context.Context, e *job.Event) error {
	s.events = append(s.events, e)
	return nil
}

// ---- WorkerRepository ----

func (s *memStore) CreateWorker(_ context.Context, w *worker.Worker) error {
	c := *w
	s.workers[w.ID] = &c
	return nil
}

func (s *memStore) GetWorkerByID(_ context.Context, workerID string) (*worker.Worker, error) {
	w, ok := s.workers[workerID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return w, nil
}

func (s *memStore) UpdateWorkerStatus(_ context.Context, workerID string, status worker.WorkerStatus) error {
	w, ok := s.workers[workerID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.Status = status
	return nil
}

func (s *memStore) MarkBusyIfAvailable(_ context.Context, workerID string) (bool, error) {
	w, ok := s.workers[workerID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if w.Status != worker.WorkerStatusAvailable {
		return false, nil
	}
	w.Status = worker.WorkerStatusBusy
	return true, nil
}

func (s *memStore) IncrementCountersOnSettle(_ context.Context, workerID string, earnings float64) error {
	w, ok := s.workers[workerID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.TotalJobs++
	w.TotalEarnings += earnings
	return nil
}

// ---- PositionRepository ----

func (s *memStore) ApplyLatest(_ context.Context, report *geo.PositionReport) (bool, error) {
	cur, ok := s.positions[report.WorkerID]
	if ok && !report.RecordedAt.After(cur.RecordedAt) {
		return false, nil
	}
	c := *report
	s.positions[report.WorkerID] = &c
	return true, nil
}

func (s *memStore) GetLatest(_ context.Context, workerID string) (*geo.PositionReport, error) {
	pos, ok := s.positions[workerID]
	if !ok {
		return nil, nil
	}
	return pos, nil
}

func (s *memStore) Archive(_ context.Context, _ *geo.PositionReport) error {
	s.archived++
	return nil
}

// ---- fakes for the outbound gateways ----

type fakeNotifier struct {
	mu   sync.Mutex
	sent []ports.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) byKind(kind string) []ports.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.Notification, 0)
	for _, sent := range n.sent {
		if sent.Kind == kind {
			out = append(out, sent)
		}
	}
	return out
}

// ---- construction and seeding helpers ----

func newTestService(t *testing.T) (ports.DispatchService, *memStore, *fakeNotifier) {
	svc, store, notifier, _ := newTestServiceWithIndex(t)
	return svc, store, notifier
}

func newTestServiceWithIndex(t *testing.T) (ports.DispatchService, *memStore, *fakeNotifier, *geoindex.MemoryIndex) {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	store := newMemStore()
	notifier := &fakeNotifier{}
	index := geoindex.NewMemoryIndex(cfg.Policy.PositionStaleAfter)
	svc := NewDispatchService(
		logger.New("dispatch-test"),
		cfg,
		store,
		jobRepoAdapter{store},
		store,
		workerRepoAdapter{store},
		store,
		index,
		geocode.NoopGeocoder{},
		notifier,
		rabbitmq.NewMQPublisher(&rabbitmq.Client{}),
	)
	return svc, store, notifier, index
}

// jobRepoAdapter and workerRepoAdapter resolve the GetByID name clash between
// the two repository interfaces sharing one memStore.
type jobRepoAdapter struct{ *memStore }

type workerRepoAdapter struct{ *memStore }

func (a workerRepoAdapter) GetByID(ctx context.Context, workerID string) (*worker.Worker, error) {
	return a.GetWorkerByID(ctx, workerID)
}

func (a workerRepoAdapter) UpdateStatus(ctx context.Context, workerID string, status worker.WorkerStatus) error {
	return a.UpdateWorkerStatus(ctx, workerID, status)
}

func seedWorker(t *testing.T, store *memStore, id string, status worker.WorkerStatus) {
	t.Helper()
	w, err := worker.NewWorker(id, "Worker "+id, "+224620000000", worker.VehicleMoto)
	require.NoError(t, err)
	w.Status = status
	store.mu.Lock()
	store.workers[id] = w
	store.mu.Unlock()
}

func seedPendingJob(t *testing.T, store *memStore, id string, origin, destination geo.Point) *job.Job {
	t.Helper()
	j, err := job.NewJob("JN_"+id, "requester-1", job.KindDelivery, job.PaymentPrepaid, 15000,
		job.Stop{Point: origin, Address: "Origin " + id, ContactName: "Sender", ContactPhone: "+224611111111"},
		job.Stop{Point: destination, Address: "Destination " + id, ContactName: "Receiver", ContactPhone: "+224622222222"},
	)
	require.NoError(t, err)
	j.ID = id
	store.mu.Lock()
	store.jobs[id] = j
	store.mu.Unlock()
	return j
}

func seedPosition(t *testing.T, store *memStore, workerID string, p geo.Point) {
	t.Helper()
	report, err := geo.NewPositionReport(workerID, nil, p, nil, nil, time.Now().UTC())
	require.NoError(t, err)
	store.mu.Lock()
	store.positions[workerID] = report
	store.mu.Unlock()
}
