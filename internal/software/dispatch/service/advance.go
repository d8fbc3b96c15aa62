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

// ErrNotAssignee means the caller is not the worker the job is assigned to.
var ErrNotAssignee = errors.New("job is assigned to a different worker")

// Advance moves the job to the next milestone. Only the assigned worker may
// advance, and only to the immediate successor of the current status.
func (service *dispatchService) Advance(ctx context.Context, in ports.AdvanceInput) (ports.AdvanceResult, error) {
	jobID := strings.TrimSpace(in.JobID)
	workerID := strings.TrimSpace(in.WorkerID)
	if jobID == "" || workerID == "" {
		return ports.AdvanceResult{}, fmt.Errorf("dispatchservice: jobID and workerID are required to advance")
	}

	// cancellation and settlement have their own endpoints
	if in.Next == job.StatusCancelled || in.Next == job.StatusPaid {
		return ports.AdvanceResult{}, job.ErrIllegalTransition
	}

	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)
	ctx = service.logger.WithJobID(ctx, jobID)
	ctx = service.logger.WithWorkerID(ctx, workerID)

	var (
		updatedJob *job.Job
		updatedAt  = time.Now().UTC()
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		j, err := service.jobRepo.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.WorkerID == nil || *j.WorkerID != workerID {
			return ErrNotAssignee
		}

		if err := service.jobRepo.UpdateStatus(txCtx, jobID, in.Next, updatedAt); err != nil {
			return err
		}
		j.Status = in.Next
		updatedJob = j

		// a prepaid job settles at COMPLETED; cash jobs wait for PAID
		if in.Next == job.StatusCompleted && j.Status.Terminal(j.PaymentMode) {
			if err := service.workerRepo.IncrementCountersOnSettle(txCtx, workerID, j.Price); err != nil {
				return err
			}
			if err := service.workerRepo.UpdateStatus(txCtx, workerID, worker.WorkerStatusAvailable); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotAssignee) && !errors.Is(err, job.ErrIllegalTransition) {
			service.logger.Error(ctx, "job_advance_failed", "Failed to advance job", err, map[string]any{
				"next": in.Next.String(),
			})
		}
		return ports.AdvanceResult{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(in.Next.String()).Inc()

	terminal := updatedJob.Status.Terminal(updatedJob.PaymentMode)

	// fan-out: publish the new status (best-effort, outside tx)
	if err := service.publishJobStatus(ctx, contracts.JobStatusMessage{
		JobID:     jobID,
		Status:    updatedJob.Status.String(),
		WorkerID:  workerID,
		Timestamp: updatedAt,
		Terminal:  terminal,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}); err != nil {
		service.logger.Error(ctx, "job_status_publish_failed", "Failed to publish status event", err, map[string]any{
			"status": updatedJob.Status.String(),
		})
	}

	if err := service.notifier.Notify(ctx, ports.Notification{
		RecipientID: updatedJob.RequesterID,
		Kind:        notificationKindFor(updatedJob.Status),
		JobID:       jobID,
		Payload: map[string]any{
			"job_number": updatedJob.JobNumber,
			"status":     updatedJob.Status.String(),
		},
	}); err != nil {
		service.logger.Error(ctx, "notify_failed", "Failed to enqueue requester notification", err, nil)
	}

	service.logger.Info(ctx, "job_advanced", "Job moved to next milestone", map[string]any{
		"status":   updatedJob.Status.String(),
		"terminal": terminal,
	})

	return ports.AdvanceResult{
		JobID:     jobID,
		Status:    updatedJob.Status.String(),
		UpdatedAt: updatedAt,
		Terminal:  terminal,
	}, nil
}

func notificationKindFor(status job.Status) string {
	switch status {
	case job.StatusCompleted:
		return "job_completed"
	case job.StatusPaid:
		return "job_paid"
	case job.StatusCancelled:
		return "job_cancelled"
	default:
		return "job_status"
	}
}
