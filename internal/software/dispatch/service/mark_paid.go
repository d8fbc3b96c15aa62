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

// MarkPaid settles a cash-on-completion job: COMPLETED -> PAID, credits the
// worker's earnings and frees them for the next job. Only the assigned
// worker may confirm the cash handover.
func (service *dispatchService) MarkPaid(ctx context.Context, in ports.MarkPaidInput) (ports.MarkPaidResult, error) {
	jobID := strings.TrimSpace(in.JobID)
	workerID := strings.TrimSpace(in.WorkerID)
	if jobID == "" || workerID == "" {
		return ports.MarkPaidResult{}, fmt.Errorf("dispatchservice: jobID and workerID are required to settle")
	}

	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)
	ctx = service.logger.WithJobID(ctx, jobID)
	ctx = service.logger.WithWorkerID(ctx, workerID)

	var (
		settled *job.Job
		paidAt  = time.Now().UTC()
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		j, err := service.jobRepo.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.WorkerID == nil || *j.WorkerID != workerID {
			return ErrNotAssignee
		}

		if err := service.jobRepo.MarkPaid(txCtx, jobID, paidAt); err != nil {
			return err
		}
		settled = j

		if err := service.workerRepo.IncrementCountersOnSettle(txCtx, workerID, j.Price); err != nil {
			return err
		}
		return service.workerRepo.UpdateStatus(txCtx, workerID, worker.WorkerStatusAvailable)
	})
	if err != nil {
		if !errors.Is(err, ErrNotAssignee) &&
			!errors.Is(err, job.ErrSettlementNotOwed) &&
			!errors.Is(err, job.ErrSettlementTooEarly) &&
			!errors.Is(err, job.ErrAlreadyTerminal) {
			service.logger.Error(ctx, "job_settle_failed", "Failed to settle cash job", err, nil)
		}
		return ports.MarkPaidResult{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(job.StatusPaid.String()).Inc()

	// fan-out: publish PAID status (best-effort, outside tx)
	if err := service.publishJobStatus(ctx, contracts.JobStatusMessage{
		JobID:     jobID,
		Status:    job.StatusPaid.String(),
		WorkerID:  workerID,
		Timestamp: paidAt,
		Terminal:  true,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}); err != nil {
		service.logger.Error(ctx, "job_status_publish_failed", "Failed to publish PAID status", err, nil)
	}

	if err := service.notifier.Notify(ctx, ports.Notification{
		RecipientID: settled.RequesterID,
		Kind:        "job_paid",
		JobID:       jobID,
		Payload: map[string]any{
			"job_number": settled.JobNumber,
			"amount":     settled.Price,
		},
	}); err != nil {
		service.logger.Error(ctx, "notify_failed", "Failed to enqueue settlement notification", err, nil)
	}

	service.logger.Info(ctx, "job_settled", "Cash job settled", map[string]any{
		"job_number": settled.JobNumber,
		"amount":     settled.Price,
	})

	return ports.MarkPaidResult{
		JobID:    jobID,
		Status:   job.StatusPaid.String(),
		PaidAt:   paidAt,
		Earnings: settled.Price,
	}, nil
}
