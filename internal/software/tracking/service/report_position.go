package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/metrics"
	"courier-dispatch/internal/general/websocket"
	"courier-dispatch/internal/ports"
)

// ErrWorkerOffline means an offline worker tried to report a position.
var ErrWorkerOffline = errors.New("worker is offline; go online before reporting positions")

// proximityFiring is what the transaction hands to the post-commit fan-out
// when a proximity alert fires for the first time on a leg.
type proximityFiring struct {
	job        *job.Job
	leg        job.Leg
	distanceKM float64
	etaMinutes float64
	firedAt    time.Time
}

// ReportPosition ingests one GPS report: archive always, apply only if
// newer, attach the active job if any, and fire the per-leg proximity
// alert exactly once.
func (service *trackingService) ReportPosition(ctx context.Context, in ports.ReportPositionInput) (ports.ReportPositionResult, error) {
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		return ports.ReportPositionResult{}, fmt.Errorf("trackingservice: workerID is required to report a position")
	}
	ctx = service.logger.WithWorkerID(ctx, workerID)

	point := geo.Point{Lat: in.Latitude, Lng: in.Longitude}
	if err := point.Validate(); err != nil {
		return ports.ReportPositionResult{}, err
	}

	recordedAt := time.Now().UTC()
	if in.RecordedAt != nil {
		recordedAt = in.RecordedAt.UTC()
	}
	metrics.PositionReportsTotal.Inc()

	var (
		applied   bool
		activeJob *job.Job
		firing    *proximityFiring
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		w, err := service.workerRepo.GetByID(txCtx, workerID)
		if err != nil {
			return err
		}
		if w.Status == worker.WorkerStatusOffline {
			return ErrWorkerOffline
		}

		// the report carries the job only if the worker actually holds one
		activeJob, err = service.jobRepo.GetActiveForWorker(txCtx, workerID)
		if err != nil {
			return err
		}
		var jobID *string
		if activeJob != nil {
			jobID = &activeJob.ID
		}

		report, err := geo.NewPositionReport(workerID, jobID, point, in.AccuracyMeters, in.SpeedKMH, recordedAt)
		if err != nil {
			return err
		}

		// every report is archived; only newer ones move the live position
		applied, err = service.posRepo.ApplyLatest(txCtx, report)
		if err != nil {
			return err
		}
		if err := service.posRepo.Archive(txCtx, report); err != nil {
			return err
		}
		if !applied {
			metrics.StalePositionsTotal.Inc()
			return nil
		}

		if activeJob == nil {
			return nil
		}
		firing, err = service.checkProximity(txCtx, activeJob, point, recordedAt)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrWorkerOffline) {
			service.logger.Error(ctx, "position_report_failed", "Failed to process position report", err, nil)
		}
		return ports.ReportPositionResult{}, err
	}

	if !applied {
		service.logger.Debug(ctx, "position_stale_dropped", "Out-of-order report archived only", map[string]any{
			"recorded_at": recordedAt.Format(time.RFC3339),
		})
		return ports.ReportPositionResult{Applied: false, RecordedAt: recordedAt}, nil
	}

	// every applied report on an active job carries its waypoint distance
	// and the ETA derived from the configured average speed
	var distanceKM, etaMinutes *float64
	if activeJob != nil {
		if waypoint, _, ok := activeJob.Waypoint(); ok {
			d := geo.HaversineKM(point, waypoint)
			e := d / service.cfg.Policy.AvgSpeedKMH * 60
			distanceKM, etaMinutes = &d, &e
		}
	}

	// post-commit fan-out, all best-effort
	if err := service.geoIndex.Update(ctx, workerID, point, recordedAt); err != nil {
		service.logger.Error(ctx, "geo_index_update_failed", "Failed to update geo index", err, nil)
	}
	service.publishPositionUpdate(ctx, workerID, activeJob, point, in, recordedAt, distanceKM, etaMinutes)
	if activeJob != nil {
		service.pushJobStreamFrame(ctx, activeJob, point, in, recordedAt, distanceKM, etaMinutes)
	}
	if firing != nil {
		service.emitProximityAlert(ctx, firing)
	}

	return ports.ReportPositionResult{Applied: true, RecordedAt: recordedAt}, nil
}

// checkProximity fires the per-leg alert when the ETA to the current
// waypoint drops under the threshold. The insert keyed on (job, leg) makes
// the alert idempotent across replicas and retries.
func (service *trackingService) checkProximity(ctx context.Context, activeJob *job.Job, at geo.Point, now time.Time) (*proximityFiring, error) {
	waypoint, leg, ok := activeJob.Waypoint()
	if !ok {
		return nil, nil
	}

	distanceKM := geo.HaversineKM(at, waypoint)
	etaMinutes := distanceKM / service.cfg.Policy.AvgSpeedKMH * 60
	eta := time.Duration(etaMinutes * float64(time.Minute))
	if eta > service.cfg.Policy.ProximityThreshold {
		return nil, nil
	}

	fired, err := service.proxRepo.MarkFired(ctx, activeJob.ID, leg, now)
	if err != nil {
		return nil, err
	}
	if !fired {
		return nil, nil
	}

	return &proximityFiring{
		job:        activeJob,
		leg:        leg,
		distanceKM: distanceKM,
		etaMinutes: etaMinutes,
		firedAt:    now,
	}, nil
}

// publishPositionUpdate broadcasts the accepted report on the fanout
// exchange for anyone following the job on another replica.
func (service *trackingService) publishPositionUpdate(
	ctx context.Context,
	workerID string,
	activeJob *job.Job,
	point geo.Point,
	in ports.ReportPositionInput,
	recordedAt time.Time,
	distanceKM, etaMinutes *float64,
) {
	msg := contracts.PositionUpdateMessage{
		WorkerID:   workerID,
		Location:   contracts.GeoPoint{Lat: point.Lat, Lng: point.Lng},
		DistanceKM: distanceKM,
		EtaMinutes: etaMinutes,
		RecordedAt: recordedAt,
		Envelope: contracts.Envelope{
			Producer: service.instance,
			SentAt:   time.Now().UTC(),
		},
	}
	if activeJob != nil {
		msg.JobID = activeJob.ID
		msg.JobStatus = activeJob.Status.String()
	}
	if in.SpeedKMH != nil {
		msg.SpeedKMH = *in.SpeedKMH
	}
	if in.AccuracyMeters != nil {
		msg.AccuracyMeters = *in.AccuracyMeters
	}

	if err := service.pub.PublishJSON(contracts.ExchangePositionFanout, "", msg); err != nil {
		service.logger.Error(ctx, "position_publish_failed", "Failed to publish position update", err, nil)
	}
}

// pushJobStreamFrame hands the applied report to this replica's own job
// subscribers without a broker round trip.
func (service *trackingService) pushJobStreamFrame(
	ctx context.Context,
	activeJob *job.Job,
	point geo.Point,
	in ports.ReportPositionInput,
	recordedAt time.Time,
	distanceKM, etaMinutes *float64,
) {
	frame := contracts.WSWorkerPositionUpdate{
		Type:       "worker_position_update",
		JobID:      activeJob.ID,
		JobStatus:  activeJob.Status.String(),
		Location:   contracts.GeoPoint{Lat: point.Lat, Lng: point.Lng},
		DistanceKM: distanceKM,
		EtaMinutes: etaMinutes,
		RecordedAt: recordedAt,
		Envelope: contracts.Envelope{
			Producer: producerName,
			SentAt:   time.Now().UTC(),
		},
	}
	if in.SpeedKMH != nil {
		frame.SpeedKMH = *in.SpeedKMH
	}
	body, err := json.Marshal(frame)
	if err != nil {
		service.logger.Error(ctx, "position_encode_failed", "Failed to encode position frame", err, nil)
		return
	}
	service.hub.Publish(websocket.JobTopic(activeJob.ID), body)
}

// emitProximityAlert pushes the alert to the job stream and notifies the
// requester that the worker is about to arrive.
func (service *trackingService) emitProximityAlert(ctx context.Context, firing *proximityFiring) {
	metrics.ProximityAlertsTotal.Inc()

	alert := contracts.WSProximityAlert{
		Type:       "proximity_alert",
		JobID:      firing.job.ID,
		Leg:        firing.leg.String(),
		EtaMinutes: firing.etaMinutes,
		DistanceKM: firing.distanceKM,
		FiredAt:    firing.firedAt.Format(time.RFC3339),
		Envelope: contracts.Envelope{
			Producer: producerName,
			SentAt:   time.Now().UTC(),
		},
	}
	if body, err := json.Marshal(alert); err == nil {
		service.hub.Publish(websocket.JobTopic(firing.job.ID), body)
	} else {
		service.logger.Error(ctx, "proximity_encode_failed", "Failed to encode proximity alert", err, nil)
	}

	// the dropoff leg alerts the destination contact's side too, but the
	// requester is the only account we can address
	if err := service.notifier.Notify(ctx, ports.Notification{
		RecipientID: firing.job.RequesterID,
		Kind:        "worker_arriving_soon",
		JobID:       firing.job.ID,
		Payload: map[string]any{
			"leg":         firing.leg.String(),
			"eta_minutes": firing.etaMinutes,
		},
	}); err != nil {
		service.logger.Error(ctx, "notify_failed", "Failed to enqueue proximity notification", err, nil)
	}

	service.logger.Info(ctx, "proximity_alert_fired", "Worker is close to the waypoint", map[string]any{
		"job_id":      firing.job.ID,
		"leg":         firing.leg.String(),
		"eta_minutes": firing.etaMinutes,
	})
}
