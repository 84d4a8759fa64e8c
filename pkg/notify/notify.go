// Package notify carries "something changed" events between the writers and
// the views that must re-fetch. Events name the table and the kind of write
// only; subscribers always reload the full list.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	TableProducts   = "products"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

type Event struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	At    time.Time `json:"at"`
}

func NewEvent(table string, typ EventType) Event {
	return Event{Table: table, Type: typ, At: time.Now().UTC()}
}

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

func Unmarshal(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber delivers events to handler until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(Event)) error
}

// Hub is an in-process fan-out of events to any number of listeners. It
// satisfies both Publisher and Subscriber.
type Hub struct {
	mu        sync.RWMutex
	listeners map[int]chan Event
	next      int
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[int]chan Event)}
}

// Publish never blocks: a listener whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Listen registers a buffered listener. The returned func unregisters it and
// closes the channel.
func (h *Hub) Listen(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribe(ctx context.Context, handler func(Event)) error {
	ch, cancel := h.Listen(16)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-ch:
			handler(e)
		}
	}
}
