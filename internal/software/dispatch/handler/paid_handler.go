package handler

import (
	"context"
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

// ----- Handler: POST /jobs/{job_id}/paid -----

func (handler *DispatchHTTPHandler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	jobID := strings.TrimSpace(r.PathValue("job_id"))
	if jobID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "job_id is required", errors.New("missing job_id"))
		return
	}
	ctx = handler.logger.WithJobID(ctx, jobID)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.MarkPaid(ctxWithTimeout, ports.MarkPaidInput{
		JobID:    jobID,
		WorkerID: strings.TrimSpace(claims.Subject),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignee):
			handler.httpError(ctxWithTimeout, w, http.StatusForbidden, err.Error(), err)
		case errors.Is(err, job.ErrSettlementNotOwed),
			errors.Is(err, job.ErrSettlementTooEarly),
			errors.Is(err, job.ErrAlreadyTerminal):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, err.Error(), err)
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
