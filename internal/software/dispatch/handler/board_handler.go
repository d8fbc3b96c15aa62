package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/ports"
	"courier-dispatch/internal/software/dispatch/service"

	"github.com/jackc/pgx/v5/pgconn"
)

// ----- Handler: GET /jobs/board -----

func (handler *DispatchHTTPHandler) handleBoard(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}
	workerID := strings.TrimSpace(claims.Subject)
	ctx = handler.logger.WithWorkerID(ctx, workerID)

	in := ports.BoardInput{WorkerID: workerID}

	// optional query overrides, clamped by the service
	q := r.URL.Query()
	if raw := q.Get("radius_km"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "radius_km must be a positive number", err)
			return
		}
		in.RadiusKM = radius
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		in.Limit = limit
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.Board(ctxWithTimeout, in)
	if err != nil {
		if errors.Is(err, service.ErrNoKnownPosition) {
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, err.Error(), err)
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

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
