package contracts

// NotificationMessage is handed to the external notification gateway.
// Delivery is best-effort; nothing in the engine waits on it.
// Routing key: "notify.{recipient_id}" on ExchangeNotifyTopic.
type NotificationMessage struct {
	RecipientID string         `json:"recipient_id"`
	Kind        string         `json:"kind"` // e.g. "job_claimed", "worker_arriving_soon"
	JobID       string         `json:"job_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Envelope
}
