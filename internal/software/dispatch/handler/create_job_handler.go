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

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type stopRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Address      string  `json:"address"`
	ContactName  string  `json:"contact_name"`
	ContactPhone string  `json:"contact_phone"`
}

type createJobRequest struct {
	RequesterID string      `json:"requester_id"`
	Kind        string      `json:"kind"`         // DELIVERY | RIDE
	PaymentMode string      `json:"payment_mode"` // PREPAID | CASH_ON_COMPLETION
	Origin      stopRequest `json:"origin"`
	Destination stopRequest `json:"destination"`
}

// ----- Handler: POST /jobs -----

func (handler *DispatchHTTPHandler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	var req createJobRequest
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

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// fill or verify requester_id against the token subject
	sub := strings.TrimSpace(claims.Subject)
	if strings.TrimSpace(req.RequesterID) == "" {
		req.RequesterID = sub
	} else if req.RequesterID != sub {
		handler.httpError(ctx, w, http.StatusForbidden, "requester_id does not match token subject", errors.New("requester/token mismatch"))
		return
	}

	kind, err := job.ParseKind(req.Kind)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "kind must be one of: DELIVERY, RIDE", err)
		return
	}
	mode, err := job.ParsePaymentMode(req.PaymentMode)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "payment_mode must be one of: PREPAID, CASH_ON_COMPLETION", err)
		return
	}

	in := ports.CreateJobInput{
		RequesterID: strings.TrimSpace(req.RequesterID),
		Kind:        kind,
		PaymentMode: mode,
		Origin:      stopInputFrom(req.Origin),
		Destination: stopInputFrom(req.Destination),
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.CreateJob(ctxWithTimeout, in)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		return
	}
	ctxWithTimeout = handler.logger.WithJobID(ctxWithTimeout, res.JobID)

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}

func stopInputFrom(req stopRequest) ports.StopInput {
	return ports.StopInput{
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Address:      strings.TrimSpace(req.Address),
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
	}
}
