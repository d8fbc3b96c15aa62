package rabbitmq

import (
	"context"
	"time"

	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/ports"
)

// Notifier publishes notifications to the external gateway over the notify
// exchange. Fire-and-forget: callers log failures and move on.
type Notifier struct {
	publisher *MQPublisher
	producer  string
}

// NewNotifier constructs a Notifier publishing as the named producer.
func NewNotifier(publisher *MQPublisher, producer string) *Notifier {
	return &Notifier{publisher: publisher, producer: producer}
}

var _ ports.Notifier = (*Notifier)(nil)

// Notify encodes and publishes a single notification.
func (n *Notifier) Notify(_ context.Context, notification ports.Notification) error {
	msg := contracts.NotificationMessage{
		RecipientID: notification.RecipientID,
		Kind:        notification.Kind,
		JobID:       notification.JobID,
		Payload:     notification.Payload,
		Envelope: contracts.Envelope{
			Producer: n.producer,
			SentAt:   time.Now().UTC(),
		},
	}

	return n.publisher.PublishJSON(contracts.ExchangeNotifyTopic, contracts.RouteNotifyPrefix+notification.RecipientID, msg)
}
