package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"customer-analytics-api/internal/logger"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCustomersUpserted is emitted after a customer batch write or update
	EventCustomersUpserted EventType = "customers.upserted"
	// EventCustomerDeleted is emitted after a customer is removed
	EventCustomerDeleted EventType = "customer.deleted"
	// EventRetentionUpserted is emitted after a retention batch write
	EventRetentionUpserted EventType = "retention.upserted"
	// EventRetentionDeleted is emitted after a retention row is removed
	EventRetentionDeleted EventType = "retention.deleted"
)

// Event represents an event in the system.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// UpsertedData lists the uids touched by a batch write.
type UpsertedData struct {
	UIDs  []int64
	Count int
}

// DeletedData names the removed uid.
type DeletedData struct {
	UID int64
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager fans events out to subscribers on their own goroutines.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	wg       sync.WaitGroup
	log      *logger.Logger
}

// NewManager creates a new event manager.
func NewManager(enabled bool, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		log:      log,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// SubscribeAll subscribes a handler to every predefined event type.
func (m *Manager) SubscribeAll(handler Handler) {
	for _, t := range []EventType{EventCustomersUpserted, EventCustomerDeleted, EventRetentionUpserted, EventRetentionDeleted} {
		m.Subscribe(t, handler)
	}
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously with a context detached from the caller's cancellation.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled || len(m.handlers[eventType]) == 0 {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	hctx := context.WithoutCancel(ctx)
	for _, handler := range m.handlers[eventType] {
		m.wg.Add(1)
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				m.log.Warn("event handler failed", "event_id", event.ID, "type", string(event.Type), "error", err)
			}
		}(handler)
	}
}

// PublishUpserted publishes a batch write event.
func (m *Manager) PublishUpserted(ctx context.Context, eventType EventType, uids []int64) {
	m.Publish(ctx, eventType, UpsertedData{UIDs: uids, Count: len(uids)})
}

// PublishDeleted publishes a delete event.
func (m *Manager) PublishDeleted(ctx context.Context, eventType EventType, uid int64) {
	m.Publish(ctx, eventType, DeletedData{UID: uid})
}

// Shutdown stops accepting events and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}

// LogHandler returns a handler that writes each event to log.
func LogHandler(log *logger.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		kv := []interface{}{"event_id", event.ID, "type", string(event.Type)}
		switch d := event.Data.(type) {
		case UpsertedData:
			kv = append(kv, "count", d.Count)
		case DeletedData:
			kv = append(kv, "uid", d.UID)
		}
		log.Info("write event", kv...)
		return nil
	}
}
