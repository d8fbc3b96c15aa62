package service

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/metrics"
	"courier-dispatch/internal/ports"
)

// CreateJob creates a new job in PENDING state with its price fixed, then
// announces it to the board.
func (service *dispatchService) CreateJob(ctx context.Context, in ports.CreateJobInput) (ports.CreateJobResult, error) {
	var (
		jobNumber     = generateJobNumber()
		correlationID = generateCorrelationID()
	)
	ctx = service.logger.WithRequestID(ctx, correlationID)

	origin := stopFromInput(in.Origin)
	destination := stopFromInput(in.Destination)

	// resolve missing addresses; failures degrade to whatever the caller sent
	service.fillAddress(ctx, &origin)
	service.fillAddress(ctx, &destination)

	// compute the trip distance, then price and duration from it
	distanceKM := geo.HaversineKM(origin.Point, destination.Point)
	price := service.priceFor(distanceKM)
	estimatedMinutes := service.estimateMinutes(distanceKM)

	j, err := job.NewJob(jobNumber, in.RequesterID, in.Kind, in.PaymentMode, price, origin, destination)
	if err != nil {
		return ports.CreateJobResult{}, err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.jobRepo.CreateJob(txCtx, j)
	})
	if err != nil {
		service.logger.Error(ctx, "job_create_failed", "Failed to persist job", err, map[string]any{
			"job_number": jobNumber,
		})
		return ports.CreateJobResult{}, err
	}
	metrics.JobsCreatedTotal.WithLabelValues(j.Kind.String()).Inc()

	ctx = service.logger.WithJobID(ctx, j.ID)

	// fan-out: announce the redacted posting (best-effort, outside tx)
	posted := contracts.JobPostedMessage{
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
		EstimatedMinutes:  estimatedMinutes,
		PostedAt:          j.CreatedAt.Format(time.RFC3339),
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if err := service.publishJobPosted(ctx, posted); err != nil {
		service.logger.Error(ctx, "job_posted_publish_failed", "Failed to publish job posting", err, map[string]any{
			"job_number": j.JobNumber,
		})
	}

	// ping workers already close to the pickup point
	service.notifyNearbyWorkers(ctx, j)

	if err := service.notifier.Notify(ctx, ports.Notification{
		RecipientID: in.RequesterID,
		Kind:        "job_created",
		JobID:       j.ID,
		Payload: map[string]any{
			"job_number": j.JobNumber,
			"price":      j.Price,
		},
	}); err != nil {
		service.logger.Error(ctx, "notify_failed", "Failed to enqueue requester notification", err, nil)
	}

	service.logger.Info(ctx, "job_created", "Job created and posted to the board", map[string]any{
		"job_number":  j.JobNumber,
		"kind":        j.Kind.String(),
		"price":       j.Price,
		"distance_km": distanceKM,
	})

	return ports.CreateJobResult{
		JobID:            j.ID,
		JobNumber:        j.JobNumber,
		Status:           j.Status.String(),
		Price:            j.Price,
		EstimatedMinutes: estimatedMinutes,
		DistanceKM:       distanceKM,
	}, nil
}

func stopFromInput(in ports.StopInput) job.Stop {
	return job.Stop{
		Point:        geo.Point{Lat: in.Latitude, Lng: in.Longitude},
		Address:      in.Address,
		ContactName:  in.ContactName,
		ContactPhone: in.ContactPhone,
	}
}

// fillAddress reverse-geocodes the stop when the caller gave coordinates only.
func (service *dispatchService) fillAddress(ctx context.Context, stop *job.Stop) {
	if stop.Address != "" {
		return
	}
	addr, err := service.geocoder.ReverseGeocode(ctx, stop.Point)
	if err != nil {
		service.logger.Debug(ctx, "reverse_geocode_failed", "Keeping empty address after geocode failure", map[string]any{
			"lat": stop.Point.Lat,
			"lng": stop.Point.Lng,
		})
		return
	}
	stop.Address = addr
}
