// internal/service/event_bus.go
package service

import (
	"sync"

	"go.uber.org/zap"

	"efi-access/internal/model"
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.NICEvent
	events      chan model.NICEvent
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.NICEvent),
		events:      make(chan model.NICEvent, 1000),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start distributes events until Close is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Close stops distribution
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event without blocking
func (eb *EventBus) Publish(event model.NICEvent) {
	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", string(event.EventType)),
			)
		}
	}
}

// Subscribe subscribes to events of the given types
func (eb *EventBus) Subscribe(eventTypes ...model.EventType) <-chan model.NICEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.NICEvent, 100)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], subscriber)
	}
	return subscriber
}

// Unsubscribe removes a subscriber from every type it was registered for
func (eb *EventBus) Unsubscribe(subscriber <-chan model.NICEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for t, subs := range eb.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if s != subscriber {
				kept = append(kept, s)
			}
		}
		eb.subscribers[t] = kept
	}
}

func (eb *EventBus) distributeEvent(event model.NICEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers[event.EventType] {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
