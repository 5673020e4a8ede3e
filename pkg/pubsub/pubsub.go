// Package pubsub fans engine updates out to subscribers such as the SSE
// stream and the terminal UI.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned when subscribing to a broker that has shut down.
var ErrShutdown = errors.New("pubsub: broker shut down")

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 16

// Broker provides publish/subscribe for messages of one type
type Broker[T any] struct {
	subscribers map[string]map[*Subscription[T]]bool
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
	buffer      int
	dropped     atomic.Uint64
}

// Subscription represents a subscription to a topic
type Subscription[T any] struct {
	topic     string
	channel   chan T
	broker    *Broker[T]
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewBroker creates a broker whose subscriptions buffer up to buffer
// messages. Non-positive values use DefaultBuffer.
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker[T]{
		subscribers: make(map[string]map[*Subscription[T]]bool),
		shutdown:    make(chan struct{}),
		buffer:      buffer,
	}
}

// Subscribe creates a new subscription to a topic. The subscription ends
// when ctx is cancelled, Unsubscribe is called or the broker shuts down;
// in every case its channel is closed.
func (b *Broker[T]) Subscribe(ctx context.Context, topic string) (*Subscription[T], error) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return nil, ErrShutdown
	}
	b.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		topic:   topic,
		channel: make(chan T, b.buffer),
		broker:  b,
		ctx:     subCtx,
		cancel:  cancel,
	}

	// Shutdown closes b.shutdown before clearing the map under b.mu, so a
	// subscriber inserted here is either rejected or closed by Shutdown.
	b.mu.Lock()
	select {
	case <-b.shutdown:
		b.mu.Unlock()
		cancel()
		return nil, ErrShutdown
	default:
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*Subscription[T]]bool)
	}
	b.subscribers[topic][sub] = true
	b.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-b.shutdown:
			// Shutdown closes the channel under the broker lock.
			sub.cancel()
		}
	}()

	return sub, nil
}

// Publish sends a message to all subscribers of a topic without blocking.
// Subscribers whose buffer is full miss the message.
func (b *Broker[T]) Publish(topic string, message T) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.shutdownMu.Unlock()

	// Snapshot subscribers; a concurrent Unsubscribe may modify the map.
	b.mu.RLock()
	topicSubs := b.subscribers[topic]
	if len(topicSubs) == 0 {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscription[T], 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.send(message, &b.dropped)
	}
}

// SubscriberCount returns the number of subscribers for a topic
func (b *Broker[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Shutdown closes all subscriptions and shuts down the broker
func (b *Broker[T]) Shutdown() {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.isShutdown = true
	b.shutdownMu.Unlock()

	close(b.shutdown)

	b.mu.Lock()
	for topic := range b.subscribers {
		for sub := range b.subscribers[topic] {
			sub.close()
		}
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()
}

// Channel returns the subscription's message channel
func (s *Subscription[T]) Channel() <-chan T {
	return s.channel
}

// Topic returns the subscribed topic.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription
func (s *Subscription[T]) Unsubscribe() {
	s.cancel()

	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	if s.broker.subscribers[s.topic] != nil {
		delete(s.broker.subscribers[s.topic], s)
		if len(s.broker.subscribers[s.topic]) == 0 {
			delete(s.broker.subscribers, s.topic)
		}
	}

	s.close()
}

// send delivers without blocking. The close path takes the broker lock, so
// holding the read lock here keeps send from racing a channel close.
func (s *Subscription[T]) send(message T, dropped *atomic.Uint64) {
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()
	if !s.broker.subscribers[s.topic][s] {
		return
	}
	select {
	case s.channel <- message:
	default:
		dropped.Add(1)
	}
}

// close closes the subscription channel safely (idempotent)
func (s *Subscription[T]) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
