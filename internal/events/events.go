package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"leihlokal/internal/models"
)

// Handler reacts to the three record event kinds.
type Handler interface {
	OnCreated(ctx context.Context, collection, id string, record json.RawMessage) error
	OnUpdated(ctx context.Context, collection, id string, record json.RawMessage) error
	OnDeleted(ctx context.Context, collection, id string) error
}

// Dispatch routes an event to the handler method for its kind.
func Dispatch(ctx context.Context, h Handler, event models.RecordEvent) error {
	switch event.Kind {
	case models.EventCreated:
		return h.OnCreated(ctx, event.Collection, event.RecordID, event.Record)
	case models.EventUpdated:
		return h.OnUpdated(ctx, event.Collection, event.RecordID, event.Record)
	case models.EventDeleted:
		return h.OnDeleted(ctx, event.Collection, event.RecordID)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

// NewRecordEvent builds an event with a JSON snapshot of record.
func NewRecordEvent(kind models.EventKind, collection, id string, record any) (models.RecordEvent, error) {
	ev := models.RecordEvent{Kind: kind, Collection: collection, RecordID: id}
	if record == nil {
		return ev, nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return ev, err
	}
	ev.Record = raw
	return ev, nil
}

// HandlerFunc receives record events for one collection.
type HandlerFunc func(ctx context.Context, event models.RecordEvent)

type subscription struct {
	id      uint64
	handler HandlerFunc
}

// Bus provides in-process pub/sub for record events.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// AllCollections subscribes to every collection.
const AllCollections = "*"

// Subscribe registers a handler for a collection and returns its cancel func.
func (b *Bus) Subscribe(collection string, handler func(ctx context.Context, event models.RecordEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[collection] = append(b.subscribers[collection], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[collection]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[collection] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish notifies subscribers of the event's collection and wildcard subscribers.
func (b *Bus) Publish(ctx context.Context, event models.RecordEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Collection]...)
	subs = append(subs, b.subscribers[AllCollections]...)
	b.mu.RUnlock()

	for _, s := range subs {
		// Handlers run synchronously; caller decides concurrency model.
		s.handler(ctx, event)
	}
}

// PublishRecord snapshots record as JSON and publishes it.
func (b *Bus) PublishRecord(ctx context.Context, kind models.EventKind, collection, id string, record any) error {
	if b == nil {
		return nil
	}
	ev, err := NewRecordEvent(kind, collection, id, record)
	if err != nil {
		return err
	}
	b.Publish(ctx, ev)
	return nil
}
