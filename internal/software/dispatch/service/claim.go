package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/metrics"
	"courier-dispatch/internal/ports"
)

// Internal sentinels used to roll the claim transaction back without
// surfacing an error to the caller. Both map to a clean outcome.
var (
	errWorkerBusy   = errors.New("worker is not available")
	errAlreadyTaken = errors.New("job was claimed by another worker")
)

// Claim attempts to assign the job to the worker. Exactly one of the racing
// workers wins; everyone else gets ALREADY_TAKEN. A worker with an active
// job gets WORKER_BUSY without touching the job at all.
func (service *dispatchService) Claim(ctx context.Context, in ports.ClaimInput) (ports.ClaimResult, error) {
	jobID := strings.TrimSpace(in.JobID)
	workerID := strings.TrimSpace(in.WorkerID)
	if jobID == "" || workerID == "" {
		return ports.ClaimResult{}, fmt.Errorf("dispatchservice: jobID and workerID are required to claim")
	}

	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)
	ctx = service.logger.WithJobID(ctx, jobID)
	ctx = service.logger.WithWorkerID(ctx, workerID)

	var (
		claimedJob *job.Job
		claimedBy  *worker.Worker
		claimedAt  = time.Now().UTC()
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// flip the worker first so a busy worker never touches the job row
		ok, err := service.workerRepo.MarkBusyIfAvailable(txCtx, workerID)
		if err != nil {
			return err
		}
		if !ok {
			return errWorkerBusy
		}

		claimed, err := service.jobRepo.ClaimPending(txCtx, jobID, workerID, claimedAt)
		if err != nil {
			return err
		}
		if !claimed {
			// rolls back the worker flip as well
			return errAlreadyTaken
		}

		claimedJob, err = service.jobRepo.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		claimedBy, err = service.workerRepo.GetByID(txCtx, workerID)
		return err
	})

	switch {
	case errors.Is(err, errWorkerBusy):
		metrics.ClaimsTotal.WithLabelValues("worker_busy").Inc()
		service.logger.Info(ctx, "claim_rejected_busy", "Worker already has an active job", nil)
		return ports.ClaimResult{
			Outcome: ports.ClaimOutcomeWorkerBusy,
			Message: "You already have an active job; finish it before claiming another",
		}, nil

	case errors.Is(err, errAlreadyTaken):
		metrics.ClaimsTotal.WithLabelValues("already_taken").Inc()
		service.logger.Info(ctx, "claim_lost_race", "Job was no longer pending", nil)
		return ports.ClaimResult{
			Outcome: ports.ClaimOutcomeAlreadyTaken,
			Message: "This job was just taken by another worker",
		}, nil

	case err != nil:
		service.logger.Error(ctx, "claim_failed", "Failed to claim job", err, nil)
		return ports.ClaimResult{}, err
	}

	metrics.ClaimsTotal.WithLabelValues("claimed").Inc()
	service.rememberClaimed(jobID)

	// fan-out: tell live boards to drop the entry (best-effort, outside tx)
	claimMsg := contracts.JobClaimedMessage{
		JobID:     claimedJob.ID,
		JobNumber: claimedJob.JobNumber,
		WorkerID:  workerID,
		ClaimedAt: claimedAt,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if claimedBy != nil {
		claimMsg.Worker = &contracts.WorkerBrief{
			WorkerID:    claimedBy.ID,
			Name:        claimedBy.FullName,
			Phone:       claimedBy.Phone,
			VehicleType: claimedBy.VehicleType.String(),
		}
	}
	if err := service.publishJobClaimed(ctx, claimMsg); err != nil {
		service.logger.Error(ctx, "job_claimed_publish_failed", "Failed to publish claim event", err, nil)
	}

	if err := service.notifier.Notify(ctx, ports.Notification{
		RecipientID: claimedJob.RequesterID,
		Kind:        "job_claimed",
		JobID:       claimedJob.ID,
		Payload: map[string]any{
			"job_number": claimedJob.JobNumber,
			"worker_id":  workerID,
		},
	}); err != nil {
		service.logger.Error(ctx, "notify_failed", "Failed to enqueue requester notification", err, nil)
	}

	service.logger.Info(ctx, "job_claimed", "Job claimed", map[string]any{
		"job_number": claimedJob.JobNumber,
	})

	return ports.ClaimResult{
		Outcome: ports.ClaimOutcomeClaimed,
		Details: jobDetails(claimedJob),
		Message: "Job is yours; full details unlocked",
	}, nil
}
