package broker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broker manages event distribution to multiple subscribers.
type Broker struct {
	subscribers []Subscriber
	events      chan Event
	register    chan Subscriber
	unregister  chan Subscriber
	mu          sync.RWMutex
	logger      *zerolog.Logger
	now         func() time.Time

	// pending holds the newest event published while the queue was full.
	// Once set, later events replace it instead of entering the queue, so
	// it is always newer than anything still queued.
	pendingMu sync.Mutex
	pending   *Event
	wake      chan struct{}
}

// New creates a broker. Call Run to start delivering.
func New(logger *zerolog.Logger) *Broker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broker{
		subscribers: make([]Subscriber, 0),
		events:      make(chan Event, 256),
		register:    make(chan Subscriber, 16),
		unregister:  make(chan Subscriber, 16),
		wake:        make(chan struct{}, 1),
		logger:      logger,
		now:         time.Now,
	}
}

// Run starts the event loop and blocks until ctx is cancelled, closing
// every subscriber on the way out.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for _, sub := range b.subscribers {
				_ = sub.Close()
			}
			b.subscribers = nil
			b.mu.Unlock()
			b.logger.Info().Msg("Event broker shut down")
			return

		case sub := <-b.register:
			b.mu.Lock()
			b.subscribers = append(b.subscribers, sub)
			n := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().Int("total_subscribers", n).Msg("Subscriber registered")

		case sub := <-b.unregister:
			b.mu.Lock()
			for i, s := range b.subscribers {
				if s == sub {
					b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
					_ = s.Close()
					break
				}
			}
			n := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().Int("total_subscribers", n).Msg("Subscriber unregistered")

		case event := <-b.events:
			b.deliver(event)
			b.flushPending()

		case <-b.wake:
			b.flushPending()
		}
	}
}

// flushPending delivers the coalesced event once the queue has drained
func (b *Broker) flushPending() {
	b.pendingMu.Lock()
	if b.pending == nil || len(b.events) > 0 {
		b.pendingMu.Unlock()
		return
	}
	event := *b.pending
	b.pending = nil
	b.pendingMu.Unlock()

	b.deliver(event)
}

func (b *Broker) deliver(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	// delivery order per subscriber matches publish order
	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			b.logger.Warn().
				Err(err).
				Str("event_type", string(event.Type)).
				Msg("Failed to send event to subscriber")
		}
	}

	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscribers", len(subs)).
		Msg("Event broadcasted")
}

// Publish queues an event for delivery. It never blocks. When the queue is
// full the event is held aside and replaces any event already held there;
// every event carries the whole collection, so subscribers still end up
// with the latest state once the queue drains.
func (b *Broker) Publish(eventType EventType, data any) {
	event := Event{
		Type:      eventType,
		Timestamp: b.now(),
		Data:      data,
	}

	b.pendingMu.Lock()
	if b.pending == nil {
		select {
		case b.events <- event:
			b.pendingMu.Unlock()
			return
		default:
		}
	}
	coalesced := b.pending != nil
	b.pending = &event
	b.pendingMu.Unlock()

	if coalesced {
		b.logger.Debug().Str("event_type", string(eventType)).Msg("Pending event replaced by newer one")
	} else {
		b.logger.Warn().Str("event_type", string(eventType)).Msg("Event channel full, holding latest event")
	}

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscriber.
func (b *Broker) Subscribe(sub Subscriber) {
	b.register <- sub
}

// Unsubscribe removes and closes a subscriber.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.unregister <- sub
}

// SubscriberCount returns the current number of subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
