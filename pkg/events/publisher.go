package events

import (
	"log/slog"
	"sync"
	"time"
)

// subscriberBufferSize bounds each subscriber's channel. A subscriber that
// falls this far behind has its oldest unread event dropped rather than
// stalling the publisher — the crawl loop must never block on an observer.
const subscriberBufferSize = 256

// EventBus fans out crawl-run events to in-process subscribers (the
// persistence layer's journal writer, the optional WebSocket bridge, test
// harnesses) without any cross-process transport. Each public method
// accepts a specific typed payload struct — see payloads.go.
type EventBus struct {
	runID string

	mu          sync.RWMutex
	subscribers map[string]chan Envelope // subscriber id -> channel
}

// NewEventBus creates an EventBus scoped to a single run.
func NewEventBus(runID string) *EventBus {
	return &EventBus{
		runID:       runID,
		subscribers: make(map[string]chan Envelope),
	}
}

// Subscribe registers a new subscriber and returns its delivery channel.
// Call Unsubscribe with the same id when the subscriber goes away.
func (b *EventBus) Subscribe(id string) <-chan Envelope {
	ch := make(chan Envelope, subscriberBufferSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// publish delivers env to every current subscriber. Sends are non-blocking:
// a subscriber whose buffer is full has the event dropped for it and a
// warning logged, rather than stalling the crawl loop.
func (b *EventBus) publish(env Envelope) {
	b.mu.RLock()
	chans := make([]chan Envelope, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- env:
		default:
			slog.Warn("event subscriber buffer full, dropping event", "run_id", b.runID, "event_type", env.Type)
		}
	}
}

func (b *EventBus) envelope(eventType string, payload any) Envelope {
	return Envelope{
		Type:      eventType,
		RunID:     b.runID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// --- Typed publish methods ---

// PublishRunStarted announces the beginning (or resumption) of a run.
func (b *EventBus) PublishRunStarted(payload RunStartedPayload) {
	b.publish(b.envelope(EventTypeRunStarted, payload))
}

// PublishRunCompleted announces a run reaching a terminal state.
func (b *EventBus) PublishRunCompleted(payload RunCompletedPayload) {
	b.publish(b.envelope(EventTypeRunCompleted, payload))
}

// PublishStepStarted announces the beginning of a new step.
func (b *EventBus) PublishStepStarted(payload StepStartedPayload) {
	b.publish(b.envelope(EventTypeStepStarted, payload))
}

// PublishScreenDiscovered announces the first sighting of a composite hash.
func (b *EventBus) PublishScreenDiscovered(payload ScreenDiscoveredPayload) {
	b.publish(b.envelope(EventTypeScreenDiscovered, payload))
}

// PublishActionExecuted announces the outcome of a single dispatched action.
func (b *EventBus) PublishActionExecuted(payload ActionExecutedPayload) {
	b.publish(b.envelope(EventTypeActionExecuted, payload))
}

// PublishStepRecorded announces that a step row has been durably persisted.
func (b *EventBus) PublishStepRecorded(payload StepRecordedPayload) {
	b.publish(b.envelope(EventTypeStepRecorded, payload))
}

// PublishStuckDetected announces that the stuck detector's heuristics tripped.
func (b *EventBus) PublishStuckDetected(payload StuckDetectedPayload) {
	b.publish(b.envelope(EventTypeStuckDetected, payload))
}

// PublishRunPaused announces a pause-flag gate transition.
func (b *EventBus) PublishRunPaused(payload RunPausedPayload) {
	b.publish(b.envelope(EventTypeRunPaused, payload))
}

// PublishRunResumed announces a pause-flag gate release.
func (b *EventBus) PublishRunResumed(payload RunResumedPayload) {
	b.publish(b.envelope(EventTypeRunResumed, payload))
}

// PublishCredentialUsed announces that the credential store supplied test
// account details to a sign-in/sign-up screen. The caller is responsible
// for masking the email before constructing the payload.
func (b *EventBus) PublishCredentialUsed(payload CredentialUsedPayload) {
	b.publish(b.envelope(EventTypeCredentialUsed, payload))
}

// SubscriberCount returns the number of active subscribers, used by tests
// and the /healthz endpoint.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
