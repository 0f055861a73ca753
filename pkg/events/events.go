package events

import (
	"sync"
	"time"
)

// EventType identifies what happened to a sync.
type EventType string

const (
	EventPullCompleted      EventType = "pull.completed"
	EventBatchApplied       EventType = "batch.applied"
	EventCheckpointAdvanced EventType = "checkpoint.advanced"
	EventSlotTruncated      EventType = "slot.truncated"
	EventBulkError          EventType = "bulk.error"
	EventLeaderAcquired     EventType = "leader.acquired"
	EventLeaderLost         EventType = "leader.lost"
)

// Event is one occurrence on a sync, identified by SyncName.
type Event struct {
	ID        string
	Type      EventType
	SyncName  string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker fans Events out to every current Subscriber. The orchestrator
// publishes lifecycle events on it; nothing subscribes by default.
// Publish sends into a 100-event buffer drained by the goroutine Start
// launches, and blocks while that buffer is full until Stop is called.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers. Safe to call on a nil
// Broker (a no-op), so callers need not guard every call site.
func (b *Broker) Publish(event *Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
