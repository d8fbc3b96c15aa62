package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/ports"
)

const producerName = "dispatch-service"

// overlayTTL is how long a just-claimed job stays hidden from the board
// even if the pending query would still surface it.
const overlayTTL = 30 * time.Second

// generateJobNumber returns an ID like: JOB_YYYYMMDD_HHMMSS_XXX
// where XXX is a millisecond fragment to reduce collisions.
func generateJobNumber() string {
	now := time.Now().UTC()
	return fmt.Sprintf("JOB_%04d%02d%02d_%02d%02d%02d_%03d",
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		now.Nanosecond()/1e6, // ms
	)
}

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// priceFor derives the fixed price from trip distance. The price is set at
// posting time and never renegotiated.
func (service *dispatchService) priceFor(distanceKM float64) float64 {
	raw := service.cfg.Policy.BaseFare + service.cfg.Policy.PerKMRate*distanceKM
	// round to whole currency units
	return math.Round(raw)
}

// estimateMinutes derives trip duration from distance.
func (service *dispatchService) estimateMinutes(distanceKM float64) int {
	return int(math.Ceil(distanceKM * service.cfg.Policy.MinutesPerKM))
}

// publishJobPosted announces a new pending job to the board.
// Routing key: job.posted.{kind}.
func (service *dispatchService) publishJobPosted(ctx context.Context, msg contracts.JobPostedMessage) error {
	routingKey := rabbitmq.JobPostedKey(msg.Kind)
	if err := service.pub.PublishJSON(contracts.ExchangeJobTopic, routingKey, msg); err != nil {
		return err
	}

	service.logger.Info(ctx, "job_posted_published", "Published job posting to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
	return nil
}

// publishJobClaimed announces a won claim so live boards drop the entry.
// Routing key: job.claimed.{job_id}.
func (service *dispatchService) publishJobClaimed(ctx context.Context, msg contracts.JobClaimedMessage) error {
	routingKey := rabbitmq.JobClaimedKey(msg.JobID)
	if err := service.pub.PublishJSON(contracts.ExchangeJobTopic, routingKey, msg); err != nil {
		return err
	}

	service.logger.Info(ctx, "job_claimed_published", "Published job claim to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
	return nil
}

// publishJobStatus announces a milestone transition after it is stored.
// Routing key: job.status.{status}.
func (service *dispatchService) publishJobStatus(ctx context.Context, msg contracts.JobStatusMessage) error {
	routingKey := rabbitmq.JobStatusKey(msg.Status)
	if err := service.pub.PublishJSON(contracts.ExchangeJobTopic, routingKey, msg); err != nil {
		return err
	}

	service.logger.Info(ctx, "job_status_published", "Published job status to RabbitMQ", map[string]any{
		"routing_key": routingKey,
	})
	return nil
}

// notifyNearbyWorkers pings workers whose last known position lies within
// the board radius of a pending job's origin. Push only; the job still has
// to be claimed off the board.
func (service *dispatchService) notifyNearbyWorkers(ctx context.Context, j *job.Job) {
	nearby, err := service.geoIndex.Nearby(ctx, j.Origin.Point, service.cfg.Policy.BoardRadiusKM, service.cfg.Policy.BoardLimit)
	if err != nil {
		service.logger.Error(ctx, "nearby_lookup_failed", "Failed to query geo index for nearby workers", err, map[string]any{
			"job_id": j.ID,
		})
		return
	}

	for _, hit := range nearby {
		if err := service.notifier.Notify(ctx, ports.Notification{
			RecipientID: hit.WorkerID,
			Kind:        "new_job_nearby",
			JobID:       j.ID,
			Payload: map[string]any{
				"job_number":         j.JobNumber,
				"kind":               j.Kind.String(),
				"distance_km":        hit.DistanceKM,
				"estimated_earnings": j.Price,
			},
		}); err != nil {
			service.logger.Error(ctx, "notify_failed", "Failed to enqueue nearby-worker notification", err, map[string]any{
				"worker_id": hit.WorkerID,
			})
		}
	}

	if len(nearby) > 0 {
		service.logger.Debug(ctx, "nearby_workers_notified", "Notified workers near the job origin", map[string]any{
			"job_id": j.ID,
			"count":  len(nearby),
		})
	}
}

// rememberClaimed adds a job to the board overlay.
func (service *dispatchService) rememberClaimed(jobID string) {
	service.overlayMu.Lock()
	defer service.overlayMu.Unlock()
	service.claimedOverlay[jobID] = time.Now().UTC()
}

// recentlyClaimed reports whether the job sits in the overlay, pruning
// expired entries as it goes.
func (service *dispatchService) recentlyClaimed(jobID string) bool {
	service.overlayMu.Lock()
	defer service.overlayMu.Unlock()

	cutoff := time.Now().UTC().Add(-overlayTTL)
	for id, at := range service.claimedOverlay {
		if at.Before(cutoff) {
			delete(service.claimedOverlay, id)
		}
	}
	_, ok := service.claimedOverlay[jobID]
	return ok
}

// jobDetails builds the unredacted view revealed after a successful claim.
func jobDetails(j *job.Job) *ports.JobDetails {
	return &ports.JobDetails{
		JobID:          j.ID,
		JobNumber:      j.JobNumber,
		Kind:           j.Kind.String(),
		PaymentMode:    j.PaymentMode.String(),
		Status:         j.Status.String(),
		Price:          j.Price,
		OriginAddress:  j.Origin.Address,
		OriginLocation: ports.GeoPoint{Latitude: j.Origin.Point.Lat, Longitude: j.Origin.Point.Lng},
		OriginContact:  j.Origin.ContactName,
		OriginPhone:    j.Origin.ContactPhone,
		DestinationAddress: j.Destination.Address,
		DestinationLocation: ports.GeoPoint{
			Latitude:  j.Destination.Point.Lat,
			Longitude: j.Destination.Point.Lng,
		},
		DestinationContact: j.Destination.ContactName,
		DestinationPhone:   j.Destination.ContactPhone,
	}
}
