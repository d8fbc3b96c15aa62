package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBackgroundConsumer starts the broker consumers that feed the live
// WebSocket streams: per-job positions, job status changes and board events.
func (service *trackingService) StartBackgroundConsumer(ctx context.Context) {
	service.startPositionConsumer(ctx)
	service.startJobStatusConsumer(ctx)
	service.startJobPostedConsumer(ctx)
}

// startPositionConsumer forwards accepted position reports to per-job
// streams.
func (service *trackingService) startPositionConsumer(ctx context.Context) {
	go func() {
		err := service.rabbitmq.Consume(
			ctx,
			contracts.QueuePositionUpdatesJobs,
			"tracking-positions",
			50,
			func(ctx context.Context, d amqp.Delivery) error {
				var msg contracts.PositionUpdateMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					service.logger.Error(ctx, "position_decode_failed",
						"Failed to decode position update", err,
						map[string]any{"size": len(d.Body)})
					return nil // poison message, ack and move on
				}
				if msg.JobID == "" {
					return nil
				}
				// this replica already pushed the frame to its own subscribers
				if msg.Producer == service.instance {
					return nil
				}

				frame := contracts.WSWorkerPositionUpdate{
					Type:       "worker_position_update",
					JobID:      msg.JobID,
					JobStatus:  msg.JobStatus,
					Location:   msg.Location,
					SpeedKMH:   msg.SpeedKMH,
					DistanceKM: msg.DistanceKM,
					EtaMinutes: msg.EtaMinutes,
					RecordedAt: msg.RecordedAt,
					Envelope: contracts.Envelope{
						CorrelationID: msg.CorrelationID,
						Producer:      producerName,
						SentAt:        time.Now().UTC(),
					},
				}
				body, err := json.Marshal(frame)
				if err != nil {
					return nil
				}
				service.hub.Publish(websocket.JobTopic(msg.JobID), body)
				return nil
			},
		)
		if err != nil && !errors.Is(err, context.Canceled) {
			service.logger.Error(ctx, "position_consume_failed",
				"Position updates consumer stopped", err,
				map[string]any{"queue": contracts.QueuePositionUpdatesJobs})
		}
	}()
}

// startJobStatusConsumer forwards status and claim events to per-job
// streams, and removes claimed or finished jobs from the live board.
func (service *trackingService) startJobStatusConsumer(ctx context.Context) {
	go func() {
		err := service.rabbitmq.Consume(
			ctx,
			contracts.QueueJobStatus,
			"tracking-job-status",
			20,
			func(ctx context.Context, d amqp.Delivery) error {
				switch {
				case strings.HasPrefix(d.RoutingKey, contracts.RouteJobClaimedPrefix):
					return service.handleJobClaimed(ctx, d.Body)
				case strings.HasPrefix(d.RoutingKey, contracts.RouteJobStatusPrefix):
					return service.handleJobStatus(ctx, d.Body)
				default:
					return nil
				}
			},
		)
		if err != nil && !errors.Is(err, context.Canceled) {
			service.logger.Error(ctx, "job_status_consume_failed",
				"Job status consumer stopped", err,
				map[string]any{"queue": contracts.QueueJobStatus})
		}
	}()
}

// startJobPostedConsumer pushes fresh postings to every board subscriber.
func (service *trackingService) startJobPostedConsumer(ctx context.Context) {
	go func() {
		err := service.rabbitmq.Consume(
			ctx,
			contracts.QueueJobPosted,
			"tracking-job-posted",
			20,
			func(ctx context.Context, d amqp.Delivery) error {
				var msg contracts.JobPostedMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					service.logger.Error(ctx, "job_posted_decode_failed",
						"Failed to decode job posting", err,
						map[string]any{"size": len(d.Body)})
					return nil
				}

				event := contracts.WSBoardEvent{
					Type:  "job_posted",
					JobID: msg.JobID,
					Entry: &msg,
					Envelope: contracts.Envelope{
						CorrelationID: msg.CorrelationID,
						Producer:      producerName,
						SentAt:        time.Now().UTC(),
					},
				}
				body, err := json.Marshal(event)
				if err != nil {
					return nil
				}
				service.hub.Publish(websocket.BoardTopic, body)
				return nil
			},
		)
		if err != nil && !errors.Is(err, context.Canceled) {
			service.logger.Error(ctx, "job_posted_consume_failed",
				"Job posted consumer stopped", err,
				map[string]any{"queue": contracts.QueueJobPosted})
		}
	}()
}

func (service *trackingService) handleJobClaimed(ctx context.Context, body []byte) error {
	var msg contracts.JobClaimedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		service.logger.Error(ctx, "job_claimed_decode_failed",
			"Failed to decode claim event", err, map[string]any{"size": len(body)})
		return nil
	}
	if msg.JobID == "" {
		return nil
	}

	// the requester's stream learns who claimed
	statusFrame := contracts.WSJobStatusUpdate{
		Type:      "job_status_update",
		JobID:     msg.JobID,
		JobNumber: msg.JobNumber,
		Status:    job.StatusAssigned.String(),
		Worker:    msg.Worker,
		Envelope: contracts.Envelope{
			CorrelationID: msg.CorrelationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if b, err := json.Marshal(statusFrame); err == nil {
		service.hub.Publish(websocket.JobTopic(msg.JobID), b)
	}

	// everyone else's board drops the entry
	service.publishBoardRemoval(msg.JobID, msg.CorrelationID)
	return nil
}

func (service *trackingService) handleJobStatus(ctx context.Context, body []byte) error {
	var msg contracts.JobStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		service.logger.Error(ctx, "job_status_decode_failed",
			"Failed to decode status event", err, map[string]any{"size": len(body)})
		return nil
	}
	if msg.JobID == "" {
		return nil
	}

	frame := contracts.WSJobStatusUpdate{
		Type:   "job_status_update",
		JobID:  msg.JobID,
		Status: msg.Status,
		Envelope: contracts.Envelope{
			CorrelationID: msg.CorrelationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if b, err := json.Marshal(frame); err == nil {
		service.hub.Publish(websocket.JobTopic(msg.JobID), b)
	}

	// a cancelled job may still be sitting on someone's board
	if msg.Status == job.StatusCancelled.String() {
		service.publishBoardRemoval(msg.JobID, msg.CorrelationID)
	}
	return nil
}

func (service *trackingService) publishBoardRemoval(jobID, correlationID string) {
	event := contracts.WSBoardEvent{
		Type:  "job_removed",
		JobID: jobID,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if b, err := json.Marshal(event); err == nil {
		service.hub.Publish(websocket.BoardTopic, b)
	}
}
