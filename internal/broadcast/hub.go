package broadcast

import (
	"context"
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind loses messages rather than stalling publishers.
const subscriberBuffer = 16

// Hub is an in-process Transport fanning payloads out to channel subscribers
// over buffered Go channels. Subscriber absence is not an error.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Payload
	nextID uint64
	closed bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan Payload)}
}

// Subscription is a live attachment to one sprint channel.
type Subscription struct {
	hub     *Hub
	channel string
	id      uint64
	ch      chan Payload
}

// Channel returns the derived channel name the subscription listens on.
func (s *Subscription) Channel() string { return s.channel }

// C returns the payload stream. The channel closes on Close.
func (s *Subscription) C() <-chan Payload { return s.ch }

// Close detaches the subscription and closes its stream. Safe to call once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if set, ok := s.hub.subs[s.channel]; ok {
		if _, ok := set[s.id]; ok {
			delete(set, s.id)
			close(s.ch)
			if len(set) == 0 {
				delete(s.hub.subs, s.channel)
			}
		}
	}
}

// Subscribe attaches a new subscriber to the sprint's derived channel.
func (h *Hub) Subscribe(sprintID string) *Subscription {
	channel := Channel(sprintID)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[uint64]chan Payload)
		h.subs[channel] = set
	}
	h.nextID++
	ch := make(chan Payload, subscriberBuffer)
	set[h.nextID] = ch
	return &Subscription{hub: h, channel: channel, id: h.nextID, ch: ch}
}

// Publish delivers the payload to every subscriber of the channel without
// blocking: full subscriber buffers drop the message.
func (h *Hub) Publish(_ context.Context, channel string, payload Payload) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}
