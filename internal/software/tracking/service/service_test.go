package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/geoindex"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/general/websocket"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// trackStore backs the tracking tests in memory: workers, their active job,
// positions and fired proximity legs. WithinTx serializes and rolls back via
// snapshot like the Postgres unit of work does.
type trackStore struct {
	mu        sync.Mutex
	workers   map[string]*worker.Worker
	jobs      map[string]*job.Job
	positions map[string]*geo.PositionReport
	fired     map[string]bool // jobID + "|" + leg
	archived  int
}

func newTrackStore() *trackStore {
	return &trackStore{
		workers:   make(map[string]*worker.Worker),
		jobs:      make(map[string]*job.Job),
		positions: make(map[string]*geo.PositionReport),
		fired:     make(map[string]bool),
	}
}

func (s *trackStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workers := make(map[string]*worker.Worker, len(s.workers))
	for k, v := range s.workers {
		c := *v
		workers[k] = &c
	}
	positions := make(map[string]*geo.PositionReport, len(s.positions))
	for k, v := range s.positions {
		c := *v
		positions[k] = &c
	}
	fired := make(map[string]bool, len(s.fired))
	for k, v := range s.fired {
		fired[k] = v
	}

	if err := fn(ctx); err != nil {
		s.workers, s.positions, s.fired = workers, positions, fired
		return err
	}
	return nil
}

// ---- WorkerRepository ----

func (s *trackStore) CreateWorker(_ context.Context, w *worker.Worker) error {
	c := *w
	s.workers[w.ID] = &c
	return nil
}

func (s *trackStore) GetByID(_ context.Context, workerID string) (*worker.Worker, error) {
	w, ok := s.workers[workerID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return w, nil
}

func (s *trackStore) UpdateStatus(_ context.Context, workerID string, status worker.WorkerStatus) error {
	w, ok := s.workers[workerID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.Status = status
	return nil
}

func (s *trackStore) MarkBusyIfAvailable(_ context.Context, workerID string) (bool, error) {
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

func (s *trackStore) IncrementCountersOnSettle(_ context.Context, workerID string, earnings float64) error {
	w, ok := s.workers[workerID]
	if !ok {
		return pgx.ErrNoRows
	}
	w.TotalJobs++
	w.TotalEarnings += earnings
	return nil
}

// ---- JobRepository (only the reads the tracking side uses do real work) ----

type trackJobRepo struct{ store *trackStore }

func (r trackJobRepo) CreateJob(_ context.Context, j *job.Job) error {
	c := *j
	r.store.jobs[j.ID] = &c
	return nil
}

func (r trackJobRepo) GetByID(_ context.Context, id string) (*job.Job, error) {
	j, ok := r.store.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return j, nil
}

func (r trackJobRepo) GetActiveForWorker(_ context.Context, workerID string) (*job.Job, error) {
	for _, j := range r.store.jobs {
		if j.WorkerID != nil && *j.WorkerID == workerID && j.Status.Active(j.PaymentMode) {
			return j, nil
		}
	}
	return nil, nil
}

func (r trackJobRepo) ListPendingNear(context.Context, geo.Point, float64, int) ([]ports.PendingJobRow, error) {
	return nil, nil
}

func (r trackJobRepo) ListPendingOlderThan(context.Context, time.Duration, int) ([]*job.Job, error) {
	return nil, nil
}

func (r trackJobRepo) ClaimPending(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

func (r trackJobRepo) UpdateStatus(context.Context, string, job.Status, time.Time) error { return nil }
func (r trackJobRepo) Cancel(context.Context, string, string, time.Time) error          { return nil }
func (r trackJobRepo) MarkPaid(context.Context, string, time.Time) error                { return nil }

// ---- PositionRepository ----

type trackPosRepo struct{ store *trackStore }

func (r trackPosRepo) ApplyLatest(_ context.Context, report *geo.PositionReport) (bool, error) {
	cur, ok := r.store.positions[report.WorkerID]
	if ok && !report.RecordedAt.After(cur.RecordedAt) {
		return false, nil
	}
	c := *report
	r.store.positions[report.WorkerID] = &c
	return true, nil
}

func (r trackPosRepo) GetLatest(_ context.Context, workerID string) (*geo.PositionReport, error) {
	pos, ok := r.store.positions[workerID]
	if !ok {
		return nil, nil
	}
	return pos, nil
}

func (r trackPosRepo) Archive(_ context.Context, _ *geo.PositionReport) error {
	r.store.archived++
	return nil
}

// ---- ProximityRepository ----

type trackProxRepo struct{ store *trackStore }

func (r trackProxRepo) MarkFired(_ context.Context, jobID string, leg job.Leg, _ time.Time) (bool, error) {
	key := jobID + "|" + leg.String()
	if r.store.fired[key] {
		return false, nil
	}
	r.store.fired[key] = true
	return true, nil
}

// ---- Notifier ----

type captureNotifier struct {
	mu   sync.Mutex
	sent []ports.Notification
}

func (n *captureNotifier) Notify(_ context.Context, notification ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *captureNotifier) byKind(kind string) []ports.Notification {
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

// ---- construction and seeding ----

type trackHarness struct {
	svc      ports.TrackingService
	store    *trackStore
	notifier *captureNotifier
	hub      *websocket.Hub
	index    *geoindex.MemoryIndex
}

func newTrackHarness(t *testing.T) *trackHarness {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	store := newTrackStore()
	notifier := &captureNotifier{}
	hub := websocket.NewHub()
	index := geoindex.NewMemoryIndex(cfg.Policy.PositionStaleAfter)

	svc := NewTrackingService(
		logger.New("tracking-test"),
		cfg,
		store,
		store,
		trackJobRepo{store},
		trackPosRepo{store},
		trackProxRepo{store},
		index,
		notifier,
		hub,
		&rabbitmq.Client{},
		rabbitmq.NewMQPublisher(&rabbitmq.Client{}),
	)
	return &trackHarness{svc: svc, store: store, notifier: notifier, hub: hub, index: index}
}

func (h *trackHarness) seedWorker(t *testing.T, id string, status worker.WorkerStatus) {
	t.Helper()
	w, err := worker.NewWorker(id, "Worker "+id, "+224620000000", worker.VehicleMoto)
	require.NoError(t, err)
	w.Status = status
	h.store.mu.Lock()
	h.store.workers[id] = w
	h.store.mu.Unlock()
}

func (h *trackHarness) seedAssignedJob(t *testing.T, id, workerID string, origin, destination geo.Point) *job.Job {
	t.Helper()
	j, err := job.NewJob("JN_"+id, "requester-1", job.KindDelivery, job.PaymentPrepaid, 15000,
		job.Stop{Point: origin, Address: "Origin", ContactName: "Sender", ContactPhone: "+224611111111"},
		job.Stop{Point: destination, Address: "Destination", ContactName: "Receiver", ContactPhone: "+224622222222"},
	)
	require.NoError(t, err)
	require.NoError(t, j.Claim(workerID))
	j.ID = id
	h.store.mu.Lock()
	h.store.jobs[id] = j
	h.store.mu.Unlock()
	return j
}
