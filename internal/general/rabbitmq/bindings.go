package rabbitmq

import (
	"fmt"

	"courier-dispatch/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	// 1. Exchanges
	exchanges := []struct {
		name string
		kind string
	}{
		{contracts.ExchangeJobTopic, "topic"},
		{contracts.ExchangeNotifyTopic, "topic"},
		{contracts.ExchangePositionFanout, "fanout"},
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	// 2. Queues
	queues := []string{
		contracts.QueueJobPosted,
		contracts.QueueJobStatus,
		contracts.QueueNotifications,
		contracts.QueuePositionUpdatesJobs,
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	// 3. Bindings
	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueJobPosted, contracts.ExchangeJobTopic, contracts.RouteJobPostedPrefix + "*"},
		{contracts.QueueJobStatus, contracts.ExchangeJobTopic, contracts.RouteJobStatusPrefix + "*"},
		{contracts.QueueJobStatus, contracts.ExchangeJobTopic, contracts.RouteJobClaimedPrefix + "*"},
		{contracts.QueueNotifications, contracts.ExchangeNotifyTopic, contracts.RouteNotifyPrefix + "*"},
		{contracts.QueuePositionUpdatesJobs, contracts.ExchangePositionFanout, ""},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
