package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"
)

// GoOnline marks the worker AVAILABLE and seeds the geo index with their
// starting position.
func (service *trackingService) GoOnline(ctx context.Context, in ports.GoOnlineInput) (ports.GoOnlineResult, error) {
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		return ports.GoOnlineResult{}, fmt.Errorf("trackingservice: workerID is required to go online")
	}
	ctx = service.logger.WithWorkerID(ctx, workerID)

	point := geo.Point{Lat: in.Latitude, Lng: in.Longitude}
	if err := point.Validate(); err != nil {
		return ports.GoOnlineResult{}, err
	}

	now := time.Now().UTC()
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		w, err := service.workerRepo.GetByID(txCtx, workerID)
		if err != nil {
			return err
		}
		if err := w.GoOnline(); err != nil {
			return err
		}
		if err := service.workerRepo.UpdateStatus(txCtx, workerID, w.Status); err != nil {
			return err
		}

		report, err := geo.NewPositionReport(workerID, nil, point, nil, nil, now)
		if err != nil {
			return err
		}
		if _, err := service.posRepo.ApplyLatest(txCtx, report); err != nil {
			return err
		}
		return service.posRepo.Archive(txCtx, report)
	})
	if err != nil {
		service.logger.Error(ctx, "go_online_failed", "Failed to bring worker online", err, nil)
		return ports.GoOnlineResult{}, err
	}

	// best-effort: the index self-heals on the next position report
	if err := service.geoIndex.Update(ctx, workerID, point, now); err != nil {
		service.logger.Error(ctx, "geo_index_update_failed", "Failed to seed geo index", err, nil)
	}

	service.logger.Info(ctx, "worker_online", "Worker is now available", map[string]any{
		"lat": in.Latitude,
		"lng": in.Longitude,
	})

	return ports.GoOnlineResult{
		Status:  worker.WorkerStatusAvailable.String(),
		Message: "You are online and visible to dispatch",
	}, nil
}
