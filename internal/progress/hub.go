// Package progress fans solve status events out to any number of listeners.
package progress

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeInfo     = "info"
	TypeProgress = "progress"
	TypeSuccess  = "success"
	TypeError    = "error"
)

// Event is one status update.
type Event struct {
	Message string    `json:"message"`
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
}

// Reporter receives status events. A nil Reporter is valid and drops them.
type Reporter interface {
	Publish(Event)
}

// Hub broadcasts events to subscribers. Slow subscribers lose events rather
// than block the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	last   Event
	buffer int
	clock  func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: map[int]chan Event{}, buffer: buffer, clock: time.Now}
}

func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = h.clock()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = e
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Last returns the most recent event.
func (h *Hub) Last() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Emit publishes through r when it is not nil.
func Emit(r Reporter, typ, msg string) {
	if r == nil {
		return
	}
	r.Publish(Event{Message: msg, Type: typ})
}
