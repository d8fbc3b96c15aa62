package service

import (
	"os"

	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/general/websocket"
	"courier-dispatch/internal/ports"
)

const producerName = "tracking-service"

// trackingService encapsulates worker presence and live position logic.
type trackingService struct {
	logger     *logger.Logger
	cfg        *config.Config
	uow        ports.UnitOfWork
	workerRepo ports.WorkerRepository
	jobRepo    ports.JobRepository
	posRepo    ports.PositionRepository
	proxRepo   ports.ProximityRepository
	geoIndex   ports.GeoIndex
	notifier   ports.Notifier
	hub        *websocket.Hub
	rabbitmq   *rabbitmq.Client
	pub        *rabbitmq.MQPublisher

	// instance stamps fanout messages so this replica can skip its own
	// echoes: it already pushed the frame to its local subscribers.
	instance string
}

// NewTrackingService creates a new TrackingService with the provided dependencies.
func NewTrackingService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	workerRepo ports.WorkerRepository,
	jobRepo ports.JobRepository,
	posRepo ports.PositionRepository,
	proxRepo ports.ProximityRepository,
	geoIndex ports.GeoIndex,
	notifier ports.Notifier,
	hub *websocket.Hub,
	client *rabbitmq.Client,
	pub *rabbitmq.MQPublisher,
) ports.TrackingService {
	instance := producerName
	if host, err := os.Hostname(); err == nil && host != "" {
		instance = producerName + "-" + host
	}
	return &trackingService{
		logger:     logger,
		cfg:        cfg,
		uow:        uow,
		workerRepo: workerRepo,
		jobRepo:    jobRepo,
		posRepo:    posRepo,
		proxRepo:   proxRepo,
		geoIndex:   geoIndex,
		notifier:   notifier,
		hub:        hub,
		rabbitmq:   client,
		pub:        pub,
		instance:   instance,
	}
}
