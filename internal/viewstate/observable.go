// Package viewstate holds per-screen state for a reader front end. Each
// holder exposes its data as Observable values plus a Status, offers intent
// methods that call the repository, and never surfaces anything but the
// repository's user-facing messages.
//
// Intent methods block until the remote call completes and are safe to call
// from multiple goroutines.
package viewstate

import (
	"context"
	"sync"
)

// Observable is a value that can be read at any time and watched for
// changes. Slices and pointers handed out are shared; treat them as
// read-only.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[chan T]struct{}
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, subs: make(map[chan T]struct{})}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set stores v and notifies subscribers.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	o.notify()
}

// Update applies f to the current value atomically.
func (o *Observable[T]) Update(f func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = f(o.value)
	o.notify()
	return o.value
}

// Subscribe returns a channel primed with the current value that then
// receives every change. A slow reader only sees the newest value. The
// channel closes when ctx is done.
func (o *Observable[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	o.mu.Lock()
	ch <- o.value
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.subs, ch)
		close(ch)
		o.mu.Unlock()
	}()
	return ch
}

// notify must be called with mu held.
func (o *Observable[T]) notify() {
	for ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- o.value
	}
}
