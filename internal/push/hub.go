package push

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 64

// Subscription receives the messages of one channel.
type Subscription struct {
	channel string
	ch      chan Message
	hub     *Hub
	once    sync.Once
}

// C returns the delivery channel. It is closed on Close.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string {
	return s.channel
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans messages out to the subscribers connected to this instance.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger *zap.Logger
	onSub  func(delta int)
}

// NewHub creates an empty hub. onSubscribe, when set, observes subscriber count changes.
func NewHub(logger *zap.Logger, onSubscribe func(delta int)) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onSubscribe == nil {
		onSubscribe = func(int) {}
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
		onSub:  onSubscribe,
	}
}

// Subscribe attaches a new subscriber to channel.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{channel: channel, ch: make(chan Message, subscriberBuffer), hub: h}
	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Subscription]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	h.mu.Unlock()
	h.onSub(1)
	return sub
}

// Publish delivers msg to local subscribers.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.Deliver(msg)
	return nil
}

// Deliver hands msg to every local subscriber of its channel without blocking;
// a subscriber whose buffer is full misses the message.
func (h *Hub) Deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[msg.Channel] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("push subscriber lagging; message dropped",
				zap.String("channel", msg.Channel),
				zap.String("type", msg.Type),
			)
		}
	}
}

// Subscribers returns the number of local subscribers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.channel)
		}
	}
	close(sub.ch)
	h.mu.Unlock()
	h.onSub(-1)
}
