package session

import (
	"context"
	"sync"
)

// Broadcaster fans out session changes to subscribers. Each subscriber has
// a one-slot buffer that always holds the newest value, so a slow reader
// skips intermediate values and a writer never blocks.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	done   chan struct{}
}

type subscriber struct {
	ch chan *Session
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{}), done: make(chan struct{})}
}

// Subscribe registers a subscriber primed with current. The returned channel
// closes when ctx is done or the broadcaster is closed.
func (b *Broadcaster) Subscribe(ctx context.Context, current *Session) <-chan *Session {
	sub := &subscriber{ch: make(chan *Session, 1)}
	sub.ch <- current.Clone()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(sub)
		case <-b.done:
		}
	}()
	return sub.ch
}

// Publish delivers s to every subscriber, replacing any value the
// subscriber has not consumed yet.
func (b *Broadcaster) Publish(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- s.Clone()
	}
}

// Close closes every subscriber channel. Later subscriptions receive their
// initial value and are closed straight away.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
