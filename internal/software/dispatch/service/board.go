package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/ports"
)

// ErrNoKnownPosition means the worker asked for the board before ever
// reporting a position.
var ErrNoKnownPosition = errors.New("worker has no known position; go online and report a position first")

// Board returns redacted pending-job summaries near the worker's last known
// position, nearest first. The destination and requester contacts stay
// hidden until a claim succeeds.
func (service *dispatchService) Board(ctx context.Context, in ports.BoardInput) (ports.BoardResult, error) {
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		return ports.BoardResult{}, fmt.Errorf("dispatchservice: workerID is required to list the board")
	}
	ctx = service.logger.WithWorkerID(ctx, workerID)

	radiusKM := in.RadiusKM
	if radiusKM <= 0 {
		radiusKM = service.cfg.Policy.BoardRadiusKM
	}
	limit := in.Limit
	if limit <= 0 || limit > service.cfg.Policy.BoardLimit {
		limit = service.cfg.Policy.BoardLimit
	}

	var (
		center geo.Point
		rows   []ports.PendingJobRow
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		pos, err := service.posRepo.GetLatest(txCtx, workerID)
		if err != nil {
			return err
		}
		if pos == nil {
			return ErrNoKnownPosition
		}
		center = pos.Point

		// overfetch so overlay-hidden entries do not shrink the page
		rows, err = service.jobRepo.ListPendingNear(txCtx, center, radiusKM, limit*2)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoKnownPosition) {
			service.logger.Error(ctx, "board_query_failed", "Failed to query pending jobs", err, map[string]any{
				"radius_km": radiusKM,
			})
		}
		return ports.BoardResult{}, err
	}

	entries := make([]ports.BoardEntry, 0, len(rows))
	for _, row := range rows {
		if service.recentlyClaimed(row.Job.ID) {
			continue
		}
		if len(entries) == limit {
			break
		}
		// trip distance uses coordinate math only; the destination itself
		// stays hidden until a claim succeeds
		trip := row.Job.TripDistanceKM()
		entries = append(entries, ports.BoardEntry{
			JobID:              row.Job.ID,
			JobNumber:          row.Job.JobNumber,
			Kind:               row.Job.Kind.String(),
			PaymentMode:        row.Job.PaymentMode.String(),
			OriginAddress:      row.Job.Origin.Address,
			DistanceToOrigin:   row.DistanceKM,
			TripDistanceKM:     trip,
			CombinedDistanceKM: row.DistanceKM + trip,
			EstimatedEarnings:  row.Job.Price,
			EstimatedMinutes:   service.estimateMinutes(trip),
			PostedAt:           row.Job.CreatedAt.Format(time.RFC3339),
		})
	}

	service.logger.Debug(ctx, "board_served", "Served job board", map[string]any{
		"entries":   len(entries),
		"radius_km": radiusKM,
	})

	return ports.BoardResult{
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
