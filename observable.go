package storypager

import "sync"

// Value is a single-writer, multi-reader holder with a queryable current
// value. Subscribers receive the current value on subscription and then every
// later value, dropping intermediate ones they have not consumed yet.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[int]chan T
	nextID  int
	closed  bool
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]chan T),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.current
}

// Store replaces the current value and publishes it. It never blocks on slow
// subscribers.
func (v *Value[T]) Store(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = val
	for _, ch := range v.subs {
		offerLatest(ch, val)
	}
}

// Subscribe returns a channel of values and a function releasing it. The
// channel is closed on release or when the Value is closed.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}

	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- v.current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()

			if sub, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(sub)
			}
		})
	}
}

// Close releases every subscriber. Later Store calls only update the current
// value.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// offerLatest replaces any unconsumed value in the buffer of ch with val.
// Only writers holding the lock send, so the send below cannot block.
func offerLatest[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	ch <- val
}
