// Package observable provides value cells that can be read at any time and subscribed to
// for future changes.
package observable

import "sync"

// Property holds the latest value of T and notifies subscribers when it is set.
// A property created with an equality function drops sets equal to the current value.
type Property[T any] struct {
	mu     sync.RWMutex
	value  T
	hasVal bool
	equal  func(a, b T) bool
	subs   map[int]func(T)
	nextID int

	// held while dispatching so subscribers observe values in the order they were set
	dispatchMu sync.Mutex
}

// NewProperty creates a property that notifies on every Set
func NewProperty[T any](initial T) *Property[T] {
	return &Property[T]{value: initial, hasVal: true, subs: make(map[int]func(T))}
}

// NewDedupedProperty creates a property that skips values equal to the current one
func NewDedupedProperty[T any](initial T, equal func(a, b T) bool) *Property[T] {
	p := NewProperty(initial)
	p.equal = equal
	return p
}

// NewStream creates a property with no initial value; it behaves as an event stream
func NewStream[T any]() *Property[T] {
	return &Property[T]{subs: make(map[int]func(T))}
}

// NewDedupedStream creates a stream that skips values equal to the last one emitted
func NewDedupedStream[T any](equal func(a, b T) bool) *Property[T] {
	p := NewStream[T]()
	p.equal = equal
	return p
}

// Equal is the equality function for comparable types
func Equal[T comparable](a, b T) bool {
	return a == b
}

// Value returns the current value and whether one was ever set
func (p *Property[T]) Value() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.hasVal
}

// Get returns the current value, or the zero value if none was set
func (p *Property[T]) Get() T {
	v, _ := p.Value()
	return v
}

// Set stores v and notifies subscribers. It reports whether subscribers were notified.
// Subscribers, including an Observe callback on its first call, must not Set p synchronously.
func (p *Property[T]) Set(v T) bool {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	p.mu.Lock()
	if p.hasVal && p.equal != nil && p.equal(p.value, v) {
		p.mu.Unlock()
		return false
	}
	p.value = v
	p.hasVal = true
	subs := make([]func(T), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
	return true
}

// Subscribe registers fn for future values. The returned function cancels the subscription.
func (p *Property[T]) Subscribe(fn func(T)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Observe calls fn with the current value, if any, and then with every future value.
// A concurrent Set waits until the current value has been delivered to fn.
func (p *Property[T]) Observe(fn func(T)) (cancel func()) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	cancel = p.Subscribe(fn)
	if v, ok := p.Value(); ok {
		fn(v)
	}
	return cancel
}

// Reset forgets the current value without notifying, so the next Set always notifies
func (p *Property[T]) Reset() {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	var zero T
	p.mu.Lock()
	p.value = zero
	p.hasVal = false
	p.mu.Unlock()
}
