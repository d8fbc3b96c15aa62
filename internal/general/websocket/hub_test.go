package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe(JobTopic("job-1"))
	second := hub.Subscribe(JobTopic("job-1"))
	other := hub.Subscribe(JobTopic("job-2"))
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)
	defer hub.Unsubscribe(other)

	hub.Publish(JobTopic("job-1"), []byte("hello"))

	assert.Equal(t, "hello", string(<-first.C))
	assert.Equal(t, "hello", string(<-second.C))
	select {
	case frame := <-other.C:
		t.Fatalf("frame leaked across topics: %s", frame)
	default:
	}
}

func TestSlowSubscriberDropsFramesWithoutBlocking(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe(BoardTopic)
	defer hub.Unsubscribe(slow)

	// overflow the buffer; Publish must never block
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(BoardTopic, []byte(fmt.Sprintf("frame-%d", i)))
	}

	received := 0
	for {
		select {
		case <-slow.C:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received, "only the buffered frames survive")
}

func TestUnsubscribeClosesDoneAndCleansUp(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(JobTopic("job-1"))
	require.Equal(t, 1, hub.SubscriberCount(JobTopic("job-1")))

	hub.Unsubscribe(sub)
	select {
	case <-sub.Done:
	default:
		t.Fatal("Done must be closed after Unsubscribe")
	}
	assert.Zero(t, hub.SubscriberCount(JobTopic("job-1")))

	// double unsubscribe is harmless
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	// publishing to a topic with no subscribers is a no-op
	hub.Publish(JobTopic("job-1"), []byte("into the void"))
}
