package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Bus is the central event bus for pub/sub.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event // eventType -> channels
	allSubs     []chan Event            // subscribers to all events
	timers      map[string][]*time.Timer
	log         *EventLog // SQLite persistence (may be nil)
	logger      *slog.Logger
	closed      bool
}

// NewBus creates a new event bus.
// The EventLog is optional - pass nil to disable persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]chan Event),
		timers:      make(map[string][]*time.Timer),
		log:         log,
		logger:      logger,
	}
}

// Publish sends an event to all subscribers and optionally persists it.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}

	// Get subscribers for this event type
	subs := make([]chan Event, len(b.subscribers[e.EventType()]))
	copy(subs, b.subscribers[e.EventType()])

	// Get all-event subscribers
	allSubs := make([]chan Event, len(b.allSubs))
	copy(allSubs, b.allSubs)
	b.mu.RUnlock()

	// Persist event
	if b.log != nil {
		if _, err := b.log.Append(e); err != nil {
			b.logger.Error("failed to persist event", "type", e.EventType(), "error", err)
			// Continue - event delivery is more important than persistence
		}
	}

	// Deliver to type-specific subscribers (non-blocking)
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}

	// Deliver to all-event subscribers (non-blocking)
	for _, ch := range allSubs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("all-subscriber channel full, dropping event",
				"type", e.EventType())
		}
	}

	return nil
}

func entityKey(entityType string, entityID int64) string {
	return fmt.Sprintf("%s/%d", entityType, entityID)
}

// PublishAfter publishes an event after a delay. The timer is tracked
// per entity so CancelEntity can stop pending deliveries, as when a
// user cancels an acquisition mid-poll.
func (b *Bus) PublishAfter(ctx context.Context, e Event, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	key := entityKey(e.EntityType(), e.EntityID())
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.removeTimer(key, timer)
		if err := b.Publish(ctx, e); err != nil {
			b.logger.Error("delayed publish failed", "type", e.EventType(), "error", err)
		}
	})
	b.timers[key] = append(b.timers[key], timer)
}

// CancelEntity stops all pending delayed events for an entity.
func (b *Bus) CancelEntity(entityType string, entityID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := entityKey(entityType, entityID)
	for _, timer := range b.timers[key] {
		timer.Stop()
	}
	delete(b.timers, key)
}

func (b *Bus) removeTimer(key string, timer *time.Timer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	timers := b.timers[key]
	for i, t := range timers {
		if t == timer {
			b.timers[key] = append(timers[:i], timers[i+1:]...)
			break
		}
	}
	if len(b.timers[key]) == 0 {
		delete(b.timers, key)
	}
}

// Subscribe returns a channel for events of a specific type.
func (b *Bus) Subscribe(eventType string, bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel for all events.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Unsubscribe removes a subscription channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Remove from type-specific subscribers
	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(sub)
				return
			}
		}
	}

	// Remove from all-event subscribers
	for i, sub := range b.allSubs {
		if sub == ch {
			b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close shuts down the bus, stops pending timers, and closes all
// subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, timers := range b.timers {
		for _, timer := range timers {
			timer.Stop()
		}
	}
	b.timers = nil

	// Close all type-specific subscriber channels
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = nil

	// Close all-event subscriber channels
	for _, ch := range b.allSubs {
		close(ch)
	}
	b.allSubs = nil

	return nil
}
