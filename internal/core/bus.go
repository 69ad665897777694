package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-subscription buffer used when none is configured.
const DefaultQueueSize = 256

// Bus fans every published item out to all current subscriptions.
//
// Each subscription owns a bounded ring buffer. When a subscriber falls
// behind and its buffer is full, the oldest queued item is discarded, so a
// slow consumer never blocks the publisher or any other subscriber.
type Bus[T any] struct {
	mu        sync.Mutex
	subs      map[uint64]*Subscription[T]
	nextID    uint64
	queueSize int
	closed    bool

	// OnDrop, when set, is called once per item discarded by overflow.
	OnDrop func()
}

// NewBus creates a bus whose subscriptions buffer up to queueSize items.
func NewBus[T any](queueSize int) *Bus[T] {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus[T]{
		subs:      make(map[uint64]*Subscription[T]),
		queueSize: queueSize,
	}
}

// Publish queues item on every subscription that exists at call time.
func (b *Bus[T]) Publish(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs {
		if sub.push(item) && b.OnDrop != nil {
			b.OnDrop()
		}
	}
	return nil
}

// Subscribe registers a new subscription. It sees only items published after
// this call returns.
func (b *Bus[T]) Subscribe() (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	sub := &Subscription[T]{
		bus:    b,
		id:     id,
		buf:    make([]T, b.queueSize),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.subs[id] = sub
	return sub, nil
}

// Len returns the number of live subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscription. Safe to call twice.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is one consumer's private view of the bus.
type Subscription[T any] struct {
	bus *Bus[T]
	id  uint64

	mu     sync.Mutex
	buf    []T
	head   int
	size   int
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// push appends item, evicting the oldest entry when full. It reports whether
// an item was evicted.
func (s *Subscription[T]) push(item T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	evicted := false
	if s.size == len(s.buf) {
		var zero T
		s.buf[s.head] = zero
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		evicted = true
		s.dropped.Add(1)
	}
	s.buf[(s.head+s.size)%len(s.buf)] = item
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return evicted
}

func (s *Subscription[T]) pop() (T, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.closed {
		return zero, false, true
	}
	if s.size == 0 {
		return zero, false, false
	}
	item := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	return item, true, false
}

// Next blocks until an item is available, the subscription is closed, or ctx
// is done. Items are returned in publish order.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	for {
		item, ok, closed := s.pop()
		if closed {
			return item, ErrSubscriptionClosed
		}
		if ok {
			return item, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Dropped returns how many items were discarded because this subscriber fell
// behind.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.bus.remove(s.id)
	s.shutdown()
}

func (s *Subscription[T]) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.buf = nil
		s.size = 0
		s.mu.Unlock()
		close(s.done)
	})
}
