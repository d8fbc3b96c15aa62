package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"courier-dispatch/internal/domain/identity"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/websocket"
	"courier-dispatch/internal/ports"
)

// TrackingHTTPHandler adapts HTTP requests to the TrackingService.
type TrackingHTTPHandler struct {
	svc     ports.TrackingService
	logger  *logger.Logger
	auth    *jwt.Manager
	streams *websocket.Streams
}

// NewTrackingHTTPHandler wires an HTTP handler around the TrackingService.
func NewTrackingHTTPHandler(
	svc ports.TrackingService,
	logger *logger.Logger,
	auth *jwt.Manager,
	streams *websocket.Streams,
) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{svc: svc, logger: logger, auth: auth, streams: streams}
}

// RegisterRoutes mounts tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /workers/{worker_id}/online",
		jwt.AuthMiddlewareFunc(handler.auth, identity.RoleWorker)(handler.handleGoOnline),
	)
	mux.HandleFunc("POST /workers/{worker_id}/offline",
		jwt.AuthMiddlewareFunc(handler.auth, identity.RoleWorker)(handler.handleGoOffline),
	)
	mux.HandleFunc("POST /workers/{worker_id}/position",
		jwt.AuthMiddlewareFunc(handler.auth, identity.RoleWorker)(handler.handleReportPosition),
	)

	// WebSocket endpoints authenticate in-band with a first-frame token
	mux.HandleFunc("GET /ws/jobs/{job_id}", handler.streams.StreamJob)
	mux.HandleFunc("GET /ws/board", handler.streams.StreamBoard)

	mux.HandleFunc("GET /workers/health", handler.handleHealth)
}

func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tracking-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ----- general helpers -----

func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// workerFromPath resolves {worker_id}, enforcing that it matches the token
// subject.
func (handler *TrackingHTTPHandler) workerFromPath(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	workerID := strings.TrimSpace(r.PathValue("worker_id"))
	if workerID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "worker_id is required", nil)
		return "", false
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", nil)
		return "", false
	}
	if workerID != strings.TrimSpace(claims.Subject) {
		handler.httpError(ctx, w, http.StatusForbidden, "worker_id does not match token subject", nil)
		return "", false
	}
	return workerID, true
}
