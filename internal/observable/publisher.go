package observable

import "sync"

// Publisher delivers values in the order they were enqueued, one at a time. A value
// enqueued while a delivery is in progress, including from within the delivery itself,
// is handed over by the goroutine already delivering instead of blocking the caller.
type Publisher[T any] struct {
	deliver func(T)

	mu       sync.Mutex
	pending  []T
	draining bool
}

func NewPublisher[T any](deliver func(T)) *Publisher[T] {
	return &Publisher[T]{deliver: deliver}
}

// Enqueue appends v. Callers enqueue while holding whatever lock orders their values.
func (p *Publisher[T]) Enqueue(v T) {
	p.mu.Lock()
	p.pending = append(p.pending, v)
	p.mu.Unlock()
}

// Flush delivers pending values unless another call is already delivering them
func (p *Publisher[T]) Flush() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	for len(p.pending) > 0 {
		v := p.pending[0]
		var zero T
		p.pending[0] = zero
		p.pending = p.pending[1:]
		p.mu.Unlock()

		p.deliver(v)

		p.mu.Lock()
	}
	p.draining = false
	p.mu.Unlock()
}
