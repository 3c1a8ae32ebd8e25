package readiness

import (
	"context"
	"sync"
)

// Future is a one-shot value that becomes available exactly once.
//
// Callbacks registered with Then before Resolve are queued and run once when
// the value arrives; callbacks registered afterwards run immediately on the
// caller's goroutine.
type Future[T any] struct {
	mu       sync.Mutex
	resolved bool
	value    T
	waiters  []func(T)
	done     chan struct{}
}

// New returns an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve publishes v and runs the queued callbacks in registration order.
// Only the first call has any effect; it reports whether this call resolved
// the future.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.value = v
	waiters := f.waiters
	f.waiters = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range waiters {
		fn(v)
	}
	return true
}

// Then schedules fn to observe the resolved value.
func (f *Future[T]) Then(fn func(T)) {
	f.mu.Lock()
	if !f.resolved {
		f.waiters = append(f.waiters, fn)
		f.mu.Unlock()
		return
	}
	v := f.value
	f.mu.Unlock()
	fn(v)
}

// Get returns the value if the future has been resolved.
func (f *Future[T]) Get() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.resolved
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, _ := f.Get()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
