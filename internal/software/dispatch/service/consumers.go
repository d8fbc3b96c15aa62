package service

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"
)

const (
	// sweepInterval is how often the stale-pending sweep runs.
	sweepInterval = 2 * time.Minute
	// repostAfter is how long a job may sit PENDING before being re-announced.
	repostAfter = 5 * time.Minute
	// sweepBatch caps how many jobs one sweep re-announces.
	sweepBatch = 50
)

// RunBackgroundConsumers starts the dispatch side background work: the
// periodic sweep that re-announces jobs nobody claimed.
func (service *dispatchService) RunBackgroundConsumers(ctx context.Context) {
	service.startStalePendingSweep(ctx)
}

// startStalePendingSweep periodically republishes long-pending jobs to the
// board so workers who came online later still see them.
func (service *dispatchService) startStalePendingSweep(ctx context.Context) {
	go func() {
		service.logger.Info(ctx, "pending_sweep_starting", "Starting stale-pending sweep", map[string]any{
			"interval":     sweepInterval.String(),
			"repost_after": repostAfter.String(),
		})

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				service.logger.Info(ctx, "pending_sweep_stopped", "Stale-pending sweep stopped", nil)
				return
			case <-ticker.C:
				service.sweepStalePending(ctx)
			}
		}
	}()
}

func (service *dispatchService) sweepStalePending(ctx context.Context) {
	var stale []ports.PendingJobRow

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		jobs, err := service.jobRepo.ListPendingOlderThan(txCtx, repostAfter, sweepBatch)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			event, err := job.NewEvent(j.ID, job.EventJobReposted, map[string]any{
				"pending_since": j.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			if err := service.jobEventRepo.Append(txCtx, event); err != nil {
				return err
			}
			stale = append(stale, ports.PendingJobRow{Job: j})
		}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "pending_sweep_failed", "Failed to list stale pending jobs", err, nil)
		return
	}
	if len(stale) == 0 {
		return
	}

	correlationID := generateCorrelationID()
	for _, row := range stale {
		j := row.Job
		msg := contracts.JobPostedMessage{
			JobID:       j.ID,
			JobNumber:   j.JobNumber,
			Kind:        j.Kind.String(),
			PaymentMode: j.PaymentMode.String(),
			Origin: contracts.GeoPoint{
				Lat:     j.Origin.Point.Lat,
				Lng:     j.Origin.Point.Lng,
				Address: j.Origin.Address,
			},
			EstimatedEarnings: j.Price,
			EstimatedMinutes:  service.estimateMinutes(j.TripDistanceKM()),
			PostedAt:          j.CreatedAt.Format(time.RFC3339),
			Envelope: contracts.Envelope{
				CorrelationID: correlationID,
				Producer:      producerName,
				SentAt:        time.Now().UTC(),
			},
		}
		if err := service.publishJobPosted(ctx, msg); err != nil {
			service.logger.Error(ctx, "pending_repost_failed", "Failed to re-announce pending job", err, map[string]any{
				"job_id": j.ID,
			})
		}

		// workers who came online after the first announcement
		service.notifyNearbyWorkers(ctx, j)
	}

	service.logger.Info(ctx, "pending_sweep_done", "Re-announced stale pending jobs", map[string]any{
		"count": len(stale),
	})
}
