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

// ErrNotParticipant means the caller is neither the requester nor the
// assigned worker of the job.
var ErrNotParticipant = errors.New("caller is not a participant of this job")

// CancelJob cancels a non-terminal job and frees the assigned worker, if
// any. Both the requester and the assigned worker may cancel.
func (service *dispatchService) CancelJob(ctx context.Context, jobID, callerID, reason string) (ports.CancelJobResult, error) {
	jobID = strings.TrimSpace(jobID)
	callerID = strings.TrimSpace(callerID)
	if jobID == "" || callerID == "" {
		return ports.CancelJobResult{}, fmt.Errorf("dispatchservice: jobID and callerID are required to cancel")
	}

	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)
	ctx = service.logger.WithJobID(ctx, jobID)

	var (
		cancelled   *job.Job
		workerID    string
		cancelledAt = time.Now().UTC()
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		j, err := service.jobRepo.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		assignee := ""
		if j.WorkerID != nil {
			assignee = *j.WorkerID
		}
		if callerID != j.RequesterID && callerID != assignee {
			return ErrNotParticipant
		}

		if err := service.jobRepo.Cancel(txCtx, jobID, reason, cancelledAt); err != nil {
			return err
		}
		cancelled = j
		workerID = assignee

		// release the worker without crediting earnings
		if workerID != "" {
			if err := service.workerRepo.UpdateStatus(txCtx, workerID, worker.WorkerStatusAvailable); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotParticipant) && !errors.Is(err, job.ErrAlreadyTerminal) {
			service.logger.Error(ctx, "job_cancel_failed", "Failed to cancel job", err, map[string]any{
				"reason": reason,
			})
		}
		return ports.CancelJobResult{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(job.StatusCancelled.String()).Inc()
	service.rememberClaimed(jobID) // hides the entry if it was still on the board

	// fan-out: publish CANCELLED status (best-effort, outside tx)
	if err := service.publishJobStatus(ctx, contracts.JobStatusMessage{
		JobID:     jobID,
		Status:    job.StatusCancelled.String(),
		WorkerID:  workerID,
		Timestamp: cancelledAt,
		Terminal:  true,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}); err != nil {
		service.logger.Error(ctx, "job_status_publish_failed", "Failed to publish CANCELLED status", err, nil)
	}

	// tell the counterparty, not the caller
	recipient := cancelled.RequesterID
	if callerID == cancelled.RequesterID && workerID != "" {
		recipient = workerID
	}
	if recipient != callerID {
		if err := service.notifier.Notify(ctx, ports.Notification{
			RecipientID: recipient,
			Kind:        "job_cancelled",
			JobID:       jobID,
			Payload: map[string]any{
				"job_number": cancelled.JobNumber,
				"reason":     reason,
			},
		}); err != nil {
			service.logger.Error(ctx, "notify_failed", "Failed to enqueue cancellation notification", err, nil)
		}
	}

	service.logger.Info(ctx, "job_cancelled", fmt.Sprintf("Job %s cancelled", cancelled.JobNumber), map[string]any{
		"reason": reason,
	})

	return ports.CancelJobResult{
		JobID:       jobID,
		Status:      job.StatusCancelled.String(),
		CancelledAt: cancelledAt.Format(time.RFC3339),
		Message:     "Job cancelled successfully",
	}, nil
}
