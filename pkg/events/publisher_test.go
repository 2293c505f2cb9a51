package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	bus := NewEventBus("run-1")
	ch := bus.Subscribe("observer-1")

	bus.PublishScreenDiscovered(ScreenDiscoveredPayload{
		RunID:         "run-1",
		ScreenID:      "screen-1",
		CompositeHash: "abc",
	})

	select {
	case env := <-ch:
		assert.Equal(t, EventTypeScreenDiscovered, env.Type)
		assert.Equal(t, "run-1", env.RunID)
		payload, ok := env.Payload.(ScreenDiscoveredPayload)
		require.True(t, ok)
		assert.Equal(t, "screen-1", payload.ScreenID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus("run-1")
	ch := bus.Subscribe("observer-1")
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe("observer-1")
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)
}

func TestEventBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewEventBus("run-1")
	bus.Subscribe("slow-observer") // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+50; i++ {
			bus.PublishActionExecuted(ActionExecutedPayload{RunID: "run-1", StepNumber: i, Success: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestEventBus_MultipleSubscribersEachReceiveEvent(t *testing.T) {
	bus := NewEventBus("run-1")
	ch1 := bus.Subscribe("a")
	ch2 := bus.Subscribe("b")

	bus.PublishRunStarted(RunStartedPayload{RunID: "run-1", AppPackage: "com.example.app"})

	for _, ch := range []<-chan Envelope{ch1, ch2} {
		select {
		case env := <-ch:
			assert.Equal(t, EventTypeRunStarted, env.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}
