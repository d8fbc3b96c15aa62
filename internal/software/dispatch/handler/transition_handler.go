package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/ports"
	"courier-dispatch/internal/software/dispatch/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type transitionRequest struct {
	Status string `json:"status"` // the next milestone, e.g. "EN_ROUTE_TO_ORIGIN"
}

// ----- Handler: POST /jobs/{job_id}/transition -----

func (handler *DispatchHTTPHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 256<<10) // 256 KiB
	defer r.Body.Close()

	jobID := strings.TrimSpace(r.PathValue("job_id"))
	if jobID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "job_id is required", errors.New("missing job_id"))
		return
	}
	ctx = handler.logger.WithJobID(ctx, jobID)

	var req transitionRequest
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

	next, err := job.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "status is not a recognized milestone", err)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.Advance(ctxWithTimeout, ports.AdvanceInput{
		JobID:    jobID,
		WorkerID: strings.TrimSpace(claims.Subject),
		Next:     next,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignee):
			handler.httpError(ctxWithTimeout, w, http.StatusForbidden, err.Error(), err)
		case errors.Is(err, job.ErrIllegalTransition):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, "transition is not allowed from the current status", err)
		case errors.Is(err, pgx.ErrNoRows):
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "job not found", err)
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

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
