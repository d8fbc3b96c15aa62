package websocket

import (
	"context"
	"net/http"
	"time"

	"courier-dispatch/internal/domain/identity"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

// Streams serves the live WebSocket endpoints: the per-job stream and the
// worker board stream. Clients authenticate with a first-frame JWT message.
type Streams struct {
	logger  *logger.Logger
	jwtMgr  *jwt.Manager
	hub     *Hub
	uow     ports.UnitOfWork
	jobRepo ports.JobRepository
}

// NewStreams creates the WebSocket stream handlers.
func NewStreams(logger *logger.Logger, jwtMgr *jwt.Manager, hub *Hub, uow ports.UnitOfWork, jobRepo ports.JobRepository) *Streams {
	return &Streams{
		logger:  logger,
		jwtMgr:  jwtMgr,
		hub:     hub,
		uow:     uow,
		jobRepo: jobRepo,
	}
}

// StreamJob handles GET /ws/jobs/{job_id}. Only the requester who posted
// the job, the worker who claimed it, or an admin may subscribe.
func (s *Streams) StreamJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	res, ok := s.authenticate(r.Context(), conn, identity.RoleRequester, identity.RoleWorker, identity.RoleAdmin)
	if !ok {
		return
	}

	allowed, err := s.mayWatchJob(r.Context(), jobID, res.Claims)
	if err != nil {
		s.logger.Error(r.Context(), "ws_job_lookup_failed", "Failed to load job for stream authorization", err,
			map[string]any{"job_id": jobID})
		sendAuthError(conn, "job not found")
		return
	}
	if !allowed {
		s.logger.Info(r.Context(), "ws_job_forbidden", "Subscriber is not a participant of the job",
			map[string]any{"job_id": jobID, "subject": res.Claims.Subject})
		sendAuthError(conn, "not a participant of this job")
		return
	}

	if err := sendAuthSuccess(conn, res.Claims.Subject); err != nil {
		return
	}

	s.logger.Info(r.Context(), "ws_connected", "Job stream subscriber connected",
		map[string]any{"job_id": jobID, "subject": res.Claims.Subject})

	s.pump(r.Context(), conn, JobTopic(jobID))
}

// StreamBoard handles GET /ws/board. Workers subscribe to live postings
// and removals.
func (s *Streams) StreamBoard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	res, ok := s.authenticate(r.Context(), conn, identity.RoleWorker, identity.RoleAdmin)
	if !ok {
		return
	}

	if err := sendAuthSuccess(conn, res.Claims.Subject); err != nil {
		return
	}

	s.logger.Info(r.Context(), "ws_connected", "Board stream subscriber connected",
		map[string]any{"subject": res.Claims.Subject})

	s.pump(r.Context(), conn, BoardTopic)
}

// authenticate runs the first-frame JWT handshake.
func (s *Streams) authenticate(ctx context.Context, conn *websocket.Conn, roles ...identity.Role) (*jwt.Result, bool) {
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthWindow)); err != nil {
		sendAuthError(conn, "internal server error")
		return nil, false
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error(ctx, "ws_auth_read_failed", "Failed to read auth message", err, nil)
		sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return nil, false
	}
	if msgType != websocket.TextMessage {
		sendAuthError(conn, "auth message must be in text format")
		return nil, false
	}

	res, err := jwt.ValidateWSAuth(firstFrame, s.jwtMgr, roles...)
	if err != nil {
		s.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		sendAuthError(conn, "authentication failed: invalid token")
		return nil, false
	}
	return res, true
}

// mayWatchJob checks whether the subject participates in the job.
func (s *Streams) mayWatchJob(ctx context.Context, jobID string, claims *jwt.Claims) (bool, error) {
	if claims.Role == identity.RoleAdmin {
		return true, nil
	}

	var j *job.Job
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		j, err = s.jobRepo.GetByID(txCtx, jobID)
		return err
	})
	if err != nil {
		return false, err
	}

	if claims.Role == identity.RoleRequester {
		return j.RequesterID == claims.Subject, nil
	}
	return j.WorkerID != nil && *j.WorkerID == claims.Subject, nil
}

// pump forwards hub frames to the connection until either side goes away.
// A read goroutine keeps the connection honest; incoming frames are ignored.
func (s *Streams) pump(ctx context.Context, conn *websocket.Conn, topic string) {
	sub := s.hub.Subscribe(topic)
	defer s.hub.Unsubscribe(sub)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	})

	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsReadWindow))
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readClosed:
			return
		case <-sub.Done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout)); err != nil {
				return
			}
		case payload := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug(ctx, "ws_write_failed", "Dropping subscriber after write failure",
					map[string]any{"topic": topic})
				return
			}
		}
	}
}
