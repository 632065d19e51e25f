package realtime

import (
	"context"
	"sync"

	"github.com/hackgods/salon-scheduling/internal/metrics"
)

const defaultSubscriberBuffer = 64

// Hub fans events out to in-process subscribers by room.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.SchedulingMetrics
}

func NewHub(buffer int, m *metrics.SchedulingMetrics) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		rooms:   make(map[string]map[*Subscription]struct{}),
		buffer:  buffer,
		metrics: m,
	}
}

// Subscription receives events for its rooms until Close is called.
type Subscription struct {
	hub   *Hub
	rooms []string
	ch    chan Event
	once  sync.Once
}

func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) Rooms() []string { return s.rooms }

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

func (h *Hub) Subscribe(rooms ...string) *Subscription {
	sub := &Subscription{
		hub:   h,
		rooms: append([]string(nil), rooms...),
		ch:    make(chan Event, h.buffer),
	}

	h.mu.Lock()
	for _, room := range rooms {
		subs, ok := h.rooms[room]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.rooms[room] = subs
		}
		subs[sub] = struct{}{}
	}
	h.mu.Unlock()

	h.metrics.AddSubscribers(1)
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	for _, room := range sub.rooms {
		if subs, ok := h.rooms[room]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(sub.ch)
	h.mu.Unlock()

	h.metrics.AddSubscribers(-1)
}

// Publish implements Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// Deliver hands ev to every subscriber of its rooms, once per subscriber.
// A full subscriber buffer skips the send; the next event still invalidates.
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Subscription]struct{})
	delivered := 0
	for _, room := range ev.Rooms() {
		for sub := range h.rooms[room] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}

			select {
			case sub.ch <- ev:
				delivered++
			default:
				h.metrics.ObserveRealtimeDrop()
			}
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
