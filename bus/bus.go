// Package bus implements the in-process event channels the control plane is
// coordinated through: a staged latest value per channel, synchronous inline
// listeners, and bounded queued subscriptions for consumers with their own
// worker.
package bus

import (
	"sync"

	"motionsense-go/errcode"
)

// -----------------------------------------------------------------------------
// Channel
// -----------------------------------------------------------------------------

// Channel is a named, statically typed slot holding the most recently
// published message plus zero or more registered observers.
//
// Publish copies the message into the staging slot under the channel guard
// and then notifies every observer in registration order. The guard is never
// waited on: if it cannot be taken immediately the publish is dropped and
// reported as errcode.BusBusy. Freshness over completeness.
type Channel[T any] struct {
	name string

	mu        sync.Mutex
	staged    T
	hasStaged bool
	listeners []Listener[T]
	subs      []*Subscription[T]
}

// Listener is an inline observer, invoked synchronously in the publisher's
// execution context. It receives a read-only view of the staged message and
// must be short and non-blocking: a slow listener delays the publisher.
type Listener[T any] func(msg *T)

// NewChannel creates a channel with the given diagnostic name.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name}
}

func (c *Channel[T]) Name() string { return c.name }

// AddListener registers an inline observer. Listeners are notified in
// registration order.
func (c *Channel[T]) AddListener(fn Listener[T]) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Publish stages msg and notifies all observers. It returns errcode.BusBusy
// when the channel guard is unavailable; callers log and continue, the
// publish is never retried automatically.
func (c *Channel[T]) Publish(msg T) error {
	if !c.mu.TryLock() {
		return errcode.BusBusy
	}
	defer c.mu.Unlock()

	c.staged = msg
	c.hasStaged = true

	for _, fn := range c.listeners {
		fn(&c.staged)
	}
	for _, s := range c.subs {
		s.deliver(msg)
	}
	return nil
}

// Latest returns a copy of the most recently staged message, if any.
func (c *Channel[T]) Latest() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged, c.hasStaged
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

// Subscription is a queued observer with its own worker. Messages are copied
// into a bounded queue; when the queue is full the oldest entry is dropped so
// a slow consumer never accumulates an unbounded backlog.
type Subscription[T any] struct {
	ch   chan T
	chn  *Channel[T]
	once sync.Once
}

// Subscribe registers a queued subscription with the given queue length.
func (c *Channel[T]) Subscribe(queueLen int) *Subscription[T] {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	s := &Subscription[T]{
		ch:  make(chan T, queueLen),
		chn: c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s
}

func (s *Subscription[T]) Channel() <-chan T { return s.ch }

// Unsubscribe removes the subscription and closes its queue.
func (s *Subscription[T]) Unsubscribe() {
	c := s.chn
	c.mu.Lock()
	for i, cur := range c.subs {
		if cur == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

func (s *Subscription[T]) deliver(msg T) {
	select {
	case s.ch <- msg:
	default:
		// drop oldest if queue full
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}
