package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Change operation kinds emitted by the filesystem engine.
const (
	OpCreate  = "create"
	OpWrite   = "write"
	OpDelete  = "delete"
	OpMove    = "move"
	OpCopy    = "copy"
	OpChmod   = "chmod"
	OpChown   = "chown"
	OpSymlink = "symlink"
	OpMount   = "mount"
	OpUnmount = "unmount"
)

// OpAny subscribes a handler to every change kind.
const OpAny = "*"

// ChangeEvent describes a successful filesystem mutation.
type ChangeEvent struct {
	Op      string    // operation kind (OpCreate, OpDelete, ...)
	Path    string    // canonical absolute path the operation acted on
	NewPath string    // destination path for move/copy, empty otherwise
	Actor   int       // uid of the acting identity
	Time    time.Time // when the mutation completed
}

// ChangeHandler processes a change event. A non-nil error is logged by
// the bus and never propagated to the mutating caller.
type ChangeHandler interface {
	Handle(ctx context.Context, ev ChangeEvent) error
}

// ChangeHandlerFunc is a function adapter for ChangeHandler.
type ChangeHandlerFunc func(ctx context.Context, ev ChangeEvent) error

// Handle implements ChangeHandler.
func (f ChangeHandlerFunc) Handle(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}

// SubscriptionID identifies a subscription.
type SubscriptionID string

// EventBus manages change-event publishing and subscription.
type EventBus interface {
	// Subscribe registers a handler for the given op kind (OpAny for all),
	// returning a subscription ID.
	Subscribe(op string, handler ChangeHandler) SubscriptionID
	// Unsubscribe removes a handler using its subscription ID.
	Unsubscribe(id SubscriptionID)
	// Publish delivers an event to all matching handlers synchronously.
	// Handler failures are logged, never returned.
	Publish(ctx context.Context, ev ChangeEvent)
}

type subscription struct {
	id      SubscriptionID
	handler ChangeHandler
}

// MemoryEventBus is the in-memory EventBus used by the engine. Delivery
// is synchronous and best-effort: a panicking or failing subscriber must
// never fail the mutation that triggered the event.
type MemoryEventBus struct {
	mu            sync.RWMutex
	handlers      map[string][]subscription
	subscriptions map[SubscriptionID]string // subscription ID -> op kind
	nextID        int
	logger        Logger
}

// NewMemoryEventBus creates a new in-memory event bus.
func NewMemoryEventBus(logger Logger) *MemoryEventBus {
	if logger == nil {
		logger = NopLogger{}
	}
	return &MemoryEventBus{
		handlers:      make(map[string][]subscription),
		subscriptions: make(map[SubscriptionID]string),
		nextID:        1,
		logger:        logger,
	}
}

// Subscribe registers a handler for events of the given op kind.
func (bus *MemoryEventBus) Subscribe(op string, handler ChangeHandler) SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	subID := SubscriptionID(fmt.Sprintf("sub_%d", bus.nextID))
	bus.nextID++

	bus.handlers[op] = append(bus.handlers[op], subscription{id: subID, handler: handler})
	bus.subscriptions[subID] = op

	bus.logger.Debug().
		Str("op", op).
		Str("subscription_id", string(subID)).
		Int("total_handlers", len(bus.handlers[op])).
		Msg("subscribed to filesystem changes")

	return subID
}

// Unsubscribe removes a handler using its subscription ID.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	op, exists := bus.subscriptions[id]
	if !exists {
		bus.logger.Debug().
			Str("subscription_id", string(id)).
			Msg("subscription not found for unsubscribe")
		return
	}
	delete(bus.subscriptions, id)

	handlers := bus.handlers[op]
	for i, sub := range handlers {
		if sub.id == id {
			handlers[i] = handlers[len(handlers)-1]
			bus.handlers[op] = handlers[:len(handlers)-1]
			return
		}
	}
}

// Publish delivers an event to handlers subscribed to its op kind and to
// OpAny. Handler errors and panics are logged and swallowed.
func (bus *MemoryEventBus) Publish(ctx context.Context, ev ChangeEvent) {
	bus.mu.RLock()
	subs := append([]subscription{}, bus.handlers[ev.Op]...)
	subs = append(subs, bus.handlers[OpAny]...)
	bus.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	bus.logger.Debug().
		Str("op", ev.Op).
		Str("path", ev.Path).
		Int("handler_count", len(subs)).
		Msg("publishing change event")

	for _, sub := range subs {
		bus.deliver(ctx, sub, ev)
	}
}

func (bus *MemoryEventBus) deliver(ctx context.Context, sub subscription, ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error().
				Str("op", ev.Op).
				Str("subscription_id", string(sub.id)).
				Interface("panic", r).
				Msg("change handler panicked")
		}
	}()
	if err := sub.handler.Handle(ctx, ev); err != nil {
		bus.logger.Warn().
			Str("op", ev.Op).
			Str("subscription_id", string(sub.id)).
			Err(err).
			Msg("change handler failed")
	}
}
