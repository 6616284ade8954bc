package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/neuroacq/sigstreams/errors"
)

// ring is the circular Buffer implementation. Read and write positions are
// monotonic counters; a slot index is the counter modulo capacity, so the
// occupied span is always wr-rd and needs no separate size bookkeeping.
type ring[T any] struct {
	mu    sync.RWMutex
	slots []T
	rd    uint64 // next position to read
	wr    uint64 // next position to write

	// Block-policy writers wait here until a read frees a slot.
	spaceFree *sync.Cond
	closed    bool

	stats  *Statistics
	prom   *promBridge
	policy OverflowPolicy
	onDrop DropCallback[T]
}

func newRing[T any](capacity int, s *settings[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var prom *promBridge
	if s.registry != nil && s.component != "" {
		var err error
		prom, err = newPromBridge(s.registry, s.component)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newRing", "metrics registration")
		}
	}

	r := &ring[T]{
		slots:  make([]T, capacity),
		stats:  NewStatistics(),
		prom:   prom,
		policy: s.policy,
		onDrop: s.onDrop,
	}
	r.spaceFree = sync.NewCond(&r.mu)

	return r, nil
}

// length and at require the lock to be held.

func (r *ring[T]) length() int {
	return int(r.wr - r.rd)
}

func (r *ring[T]) at(pos uint64) *T {
	return &r.slots[pos%uint64(len(r.slots))]
}

// evict discards the oldest element to make room and returns it.
func (r *ring[T]) evict() T {
	var zero T
	slot := r.at(r.rd)
	old := *slot
	*slot = zero
	r.rd++

	r.stats.Overflow()
	r.stats.Drop()
	if r.prom != nil {
		r.prom.overflow()
		r.prom.drop()
	}

	return old
}

// push stores one element; the caller has ensured a slot is free.
func (r *ring[T]) push(item T) {
	*r.at(r.wr) = item
	r.wr++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.length()))
	if r.prom != nil {
		r.prom.write(r.length(), len(r.slots))
	}
}

// fireDrops hands discarded items to the drop callback. Callers arrange for
// it to run after the lock is released.
func (r *ring[T]) fireDrops(items []T) {
	if r.onDrop == nil {
		return
	}
	for _, item := range items {
		r.onDrop(item)
	}
}

// Write adds an item to the buffer according to the overflow policy.
func (r *ring[T]) Write(item T) error {
	var dropped []T

	// Registered ahead of the unlock defer, so the callback fires once the
	// lock is released. LIFO defer order matters here.
	defer func() { r.fireDrops(dropped) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "Write", "buffer closed")
	}

	if r.length() == len(r.slots) {
		switch r.policy {
		case DropOldest:
			dropped = append(dropped, r.evict())

		case DropNewest:
			r.stats.Overflow()
			r.stats.Drop()
			if r.prom != nil {
				r.prom.overflow()
				r.prom.drop()
			}
			dropped = append(dropped, item)
			return nil

		case Block:
			for r.length() == len(r.slots) && !r.closed {
				r.spaceFree.Wait()
			}
			if r.closed {
				return errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "Write",
					"buffer closed during blocking wait")
			}
		}
	}

	r.push(item)

	return nil
}

// Read retrieves and removes the oldest item.
func (r *ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.rd == r.wr {
		return zero, false
	}

	slot := r.at(r.rd)
	item := *slot
	*slot = zero // release for GC
	r.rd++

	r.stats.Read()
	r.stats.UpdateSize(int64(r.length()))
	if r.prom != nil {
		r.prom.read(r.length(), len(r.slots))
	}

	r.spaceFree.Signal()

	return item, true
}

// ReadBatch retrieves and removes up to max items, oldest first.
func (r *ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.length()
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		slot := r.at(r.rd)
		out[i] = *slot
		*slot = zero
		r.rd++
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.length()))
	if r.prom != nil {
		r.prom.fill(r.length(), len(r.slots))
	}

	// One signal per freed slot so every blocked writer gets a chance.
	for range out {
		r.spaceFree.Signal()
	}

	return out
}

// Peek returns the oldest item without removing it.
func (r *ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.rd == r.wr {
		return zero, false
	}

	r.stats.Peek()
	if r.prom != nil {
		r.prom.peek()
	}

	return *r.at(r.rd), true
}

// Size returns the current number of items in the buffer.
func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.length()
}

// Capacity returns the maximum number of items the buffer can hold.
func (r *ring[T]) Capacity() int {
	return len(r.slots) // immutable, no lock needed
}

// IsFull reports whether the buffer is at capacity.
func (r *ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.length() == len(r.slots)
}

// IsEmpty reports whether the buffer holds no items.
func (r *ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rd == r.wr
}

// Clear removes all items. The drop callback, if set, sees every removed
// item once the lock is released.
func (r *ring[T]) Clear() {
	var dropped []T
	defer func() { r.fireDrops(dropped) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.onDrop != nil && r.rd != r.wr {
		dropped = make([]T, 0, r.length())
		for pos := r.rd; pos != r.wr; pos++ {
			dropped = append(dropped, *r.at(pos))
		}
	}

	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.rd = 0
	r.wr = 0

	r.stats.UpdateSize(0)
	if r.prom != nil {
		r.prom.fill(0, len(r.slots))
	}

	r.spaceFree.Broadcast()
}

// Stats returns the buffer's statistics tracker.
func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

// Close shuts the buffer down and wakes all blocked writers.
func (r *ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.spaceFree.Broadcast()

	return nil
}

// WriteWithTimeout is Write bounded by a timeout under the Block policy.
// For other policies it behaves exactly like Write.
func (r *ring[T]) WriteWithTimeout(item T, timeout time.Duration) error {
	if r.policy != Block {
		return r.Write(item)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return r.WriteWithContext(ctx, item)
}

// WriteWithContext is Write honoring context cancellation under the Block
// policy. For other policies it behaves exactly like Write.
func (r *ring[T]) WriteWithContext(ctx context.Context, item T) error {
	if r.policy != Block {
		return r.Write(item)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "WriteWithContext", "buffer closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The watcher wakes the cond wait below when the context fires.
	// Broadcast does not require the mutex, so this is safe without it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.spaceFree.Broadcast()
		case <-done:
		}
	}()

	for r.length() == len(r.slots) && !r.closed {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.spaceFree.Wait()

		// Re-check after waking: the broadcast may have come from the watcher.
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if r.closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "WriteWithContext", "buffer closed during wait")
	}

	r.push(item)

	return nil
}
