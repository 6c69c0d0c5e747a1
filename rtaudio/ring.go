package rtaudio

import "sync/atomic"

type cacheLinePad [64]byte

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Ring is a bounded lock-free multi-producer multi-consumer queue. Push and
// Pop never block and never allocate. Capacity is rounded up to a power of
// two.
type Ring[T any] struct {
	slots []slot[T]
	mask  uint64
	_     cacheLinePad
	head  atomic.Uint64
	_     cacheLinePad
	tail  atomic.Uint64
	_     cacheLinePad
}

// NewRing returns a ring holding at least capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	n := 2
	for n < capacity {
		n <<= 1
	}
	r := &Ring[T]{slots: make([]slot[T], n), mask: uint64(n - 1)}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// Cap returns the number of slots.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Len returns an approximate item count.
func (r *Ring[T]) Len() int {
	n := int64(r.head.Load()) - int64(r.tail.Load())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Push enqueues v and reports false when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	pos := r.head.Load()
	for {
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				return true
			}
		case dif < 0:
			return false
		}
		pos = r.head.Load()
	}
}

// Pop dequeues the oldest item and reports false when the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	pos := r.tail.Load()
	for {
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(pos+1); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				v := s.val
				var zero T
				s.val = zero
				s.seq.Store(pos + r.mask + 1)
				return v, true
			}
		case dif < 0:
			var zero T
			return zero, false
		}
		pos = r.tail.Load()
	}
}
