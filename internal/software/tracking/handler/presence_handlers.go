package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type goOnlineRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ----- Handler: POST /workers/{worker_id}/online -----

func (handler *TrackingHTTPHandler) handleGoOnline(w http.ResponseWriter, r *http.Request) {
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

	var req goOnlineRequest
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

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GoOnline(ctxWithTimeout, ports.GoOnlineInput{
		WorkerID:  workerID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		handler.presenceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: POST /workers/{worker_id}/offline -----

func (handler *TrackingHTTPHandler) handleGoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	workerID, ok := handler.workerFromPath(ctx, w, r)
	if !ok {
		return
	}
	ctx = handler.logger.WithWorkerID(ctx, workerID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GoOffline(ctxWithTimeout, ports.GoOfflineInput{WorkerID: workerID})
	if err != nil {
		handler.presenceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// presenceError maps presence failures onto HTTP statuses.
func (handler *TrackingHTTPHandler) presenceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, worker.ErrInvalidStatusSwitch), errors.Is(err, worker.ErrWorkerHasActiveJob):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, pgx.ErrNoRows):
		handler.httpError(ctx, w, http.StatusNotFound, "worker not found", err)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	}
}
