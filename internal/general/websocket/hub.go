package websocket

import (
	"sync"

	"courier-dispatch/internal/general/metrics"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind starts losing frames rather than stalling the
// publisher.
const subscriberBuffer = 16

// Subscription is one listener on a topic. Frames arrive on C; Done is
// closed when the hub evicts the subscriber.
type Subscription struct {
	C    <-chan []byte
	Done <-chan struct{}

	topic string
	id    uint64
	ch    chan []byte
	done  chan struct{}
}

// Hub fans frames out to topic subscribers. Publishing never blocks: a
// slow subscriber's frame is dropped and counted, everyone else still
// gets theirs.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	nextID uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[uint64]*Subscription)}
}

// Subscribe registers a listener on a topic. The caller must eventually
// call Unsubscribe.
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		topic: topic,
		id:    h.nextID,
		ch:    make(chan []byte, subscriberBuffer),
		done:  make(chan struct{}),
	}
	sub.C = sub.ch
	sub.Done = sub.done

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[uint64]*Subscription)
	}
	h.topics[topic][sub.id] = sub
	return sub
}

// Unsubscribe removes a listener and closes its Done channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
	close(sub.done)
}

// Publish delivers a frame to every subscriber of the topic. Full buffers
// drop the frame for that subscriber only.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.topics[topic] {
		select {
		case sub.ch <- payload:
		default:
			metrics.WSDroppedTotal.Inc()
		}
	}
}

// SubscriberCount reports how many listeners a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Topic name helpers keep publishers and stream handlers consistent.

// JobTopic is the per-job stream: status updates, positions, proximity alerts.
func JobTopic(jobID string) string { return "job:" + jobID }

// BoardTopic is the shared live board stream for workers.
const BoardTopic = "board"
