package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/ports"
	"courier-dispatch/internal/software/tracking/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type reportPositionRequest struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	SpeedKMH       *float64 `json:"speed_kmh,omitempty"`
	RecordedAt     *string  `json:"recorded_at,omitempty"` // ISO-8601, defaults to server time
}

// ----- Handler: POST /workers/{worker_id}/position -----

func (handler *TrackingHTTPHandler) handleReportPosition(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 256<<10) // 256 KiB
	defer r.Body.Close()

	workerID, ok := handler.workerFromPath(ctx, w, r)
	if !ok {
		return
	}
	ctx = handler.logger.WithWorkerID(ctx, workerID)

	var req reportPositionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	in := ports.ReportPositionInput{
		WorkerID:       workerID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		SpeedKMH:       req.SpeedKMH,
	}
	if req.RecordedAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.RecordedAt)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "recorded_at must be an RFC 3339 timestamp", err)
			return
		}
		in.RecordedAt = &ts
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.ReportPosition(ctxWithTimeout, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWorkerOffline):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, err.Error(), err)
		case errors.Is(err, pgx.ErrNoRows):
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "worker not found", err)
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
				return
			}
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		}
		return
	}

	// a stale report is not an error, the client just learns it was ignored
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusAccepted
	}
	handler.jsonResponse(ctxWithTimeout, w, status, res)
}
