package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsAuthWindow   = 5 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsReadWindow   = 60 * time.Second
	wsPingInterval = 30 * time.Second
	ctrlTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// sendAuthError writes an auth failure frame to the client.
func sendAuthError(conn *websocket.Conn, message string) {
	errorMsg := map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	}
	msgBytes, err := json.Marshal(errorMsg)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, msgBytes)
}

// sendAuthSuccess confirms authentication to the client.
func sendAuthSuccess(conn *websocket.Conn, subjectID string) error {
	successMsg := map[string]any{
		"type":       "auth_success",
		"message":    "Authentication successful",
		"success":    true,
		"subject_id": subjectID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	msgBytes, err := json.Marshal(successMsg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, msgBytes)
}
