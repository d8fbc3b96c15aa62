package service

import (
	"context"
	"fmt"
	"strings"

	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"
)

// GoOffline takes the worker off the grid and removes them from the geo
// index so the board stops considering them.
func (service *trackingService) GoOffline(ctx context.Context, in ports.GoOfflineInput) (ports.GoOfflineResult, error) {
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		return ports.GoOfflineResult{}, fmt.Errorf("trackingservice: workerID is required to go offline")
	}
	ctx = service.logger.WithWorkerID(ctx, workerID)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		w, err := service.workerRepo.GetByID(txCtx, workerID)
		if err != nil {
			return err
		}
		if err := w.GoOffline(); err != nil {
			return err
		}
		return service.workerRepo.UpdateStatus(txCtx, workerID, w.Status)
	})
	if err != nil {
		service.logger.Error(ctx, "go_offline_failed", "Failed to take worker offline", err, nil)
		return ports.GoOfflineResult{}, err
	}

	if err := service.geoIndex.Remove(ctx, workerID); err != nil {
		service.logger.Error(ctx, "geo_index_remove_failed", "Failed to drop worker from geo index", err, nil)
	}

	service.logger.Info(ctx, "worker_offline", "Worker went offline", nil)

	return ports.GoOfflineResult{
		Status:  worker.WorkerStatusOffline.String(),
		Message: "You are offline",
	}, nil
}
