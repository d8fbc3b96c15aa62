package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ----- Handler: POST /jobs/{job_id}/claim -----

func (handler *DispatchHTTPHandler) handleClaim(w http.ResponseWriter, r *http.Request) {
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

	res, err := handler.svc.Claim(ctxWithTimeout, ports.ClaimInput{
		JobID:    jobID,
		WorkerID: strings.TrimSpace(claims.Subject),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "job not found", err)
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	// losing outcomes are conflicts, not errors
	status := http.StatusOK
	if res.Outcome != ports.ClaimOutcomeClaimed {
		status = http.StatusConflict
	}
	handler.jsonResponse(ctxWithTimeout, w, status, res)
}
