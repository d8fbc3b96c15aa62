package service

import (
	"sync"
	"time"

	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/ports"
)

// dispatchService encapsulates the dispatch logic and dependencies.
type dispatchService struct {
	logger       *logger.Logger
	cfg          *config.Config
	uow          ports.UnitOfWork
	jobRepo      ports.JobRepository
	jobEventRepo ports.JobEventRepository
	workerRepo   ports.WorkerRepository
	posRepo      ports.PositionRepository
	geoIndex     ports.GeoIndex
	geocoder     ports.Geocoder
	notifier     ports.Notifier
	pub          *rabbitmq.MQPublisher

	// claimedOverlay remembers jobs claimed very recently so the board can
	// hide them before replicas and caches catch up.
	overlayMu      sync.Mutex
	claimedOverlay map[string]time.Time
}

// NewDispatchService creates a new DispatchService with the provided dependencies.
func NewDispatchService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	jobRepo ports.JobRepository,
	jobEventRepo ports.JobEventRepository,
	workerRepo ports.WorkerRepository,
	posRepo ports.PositionRepository,
	geoIndex ports.GeoIndex,
	geocoder ports.Geocoder,
	notifier ports.Notifier,
	pub *rabbitmq.MQPublisher,
) ports.DispatchService {
	return &dispatchService{
		logger:         logger,
		cfg:            cfg,
		uow:            uow,
		jobRepo:        jobRepo,
		jobEventRepo:   jobEventRepo,
		workerRepo:     workerRepo,
		posRepo:        posRepo,
		geoIndex:       geoIndex,
		geocoder:       geocoder,
		notifier:       notifier,
		pub:            pub,
		claimedOverlay: make(map[string]time.Time),
	}
}
