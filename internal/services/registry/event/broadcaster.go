package event

import (
	"errors"
	"sync"
)

const defaultSubscriberBuffer = 64

var (
	// ErrSubscriberLagging reports a subscriber dropped because its buffer filled.
	ErrSubscriberLagging = errors.New("subscriber dropped: buffer full")
	// ErrBroadcasterClosed reports a subscription ended by broadcaster shutdown.
	ErrBroadcasterClosed = errors.New("broadcaster closed")
)

// Subscription receives published events in publish order until it is
// cancelled, dropped, or the broadcaster closes.
type Subscription struct {
	ch   chan Event
	once sync.Once
	mu   sync.Mutex
	err  error
}

// Events returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Err reports why the subscription ended, or nil while it is active or after
// a plain cancel.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

// Broadcaster fans committed events out to in-process subscribers. Publish
// never blocks: a subscriber that cannot keep up is dropped.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given buffer size and returns it
// with a cancel function. Cancel is safe to call more than once.
func (b *Broadcaster) Subscribe(buffer int) (*Subscription, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &Subscription{ch: make(chan Event, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.end(ErrBroadcasterClosed)
		return sub, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.end(nil)
	}
	return sub, cancel
}

// Publish delivers evt to every active subscriber.
func (b *Broadcaster) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			delete(b.subs, sub)
			sub.end(ErrSubscriberLagging)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		sub.end(ErrBroadcasterClosed)
	}
}
