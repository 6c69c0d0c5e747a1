package rtaudio

import (
	"runtime"
	"time"
)

// Buffer is a fixed-size block of mono samples; only Data[:N] is valid.
type Buffer struct {
	Data []float32
	N    int
}

// Samples returns the valid part of the buffer.
func (b *Buffer) Samples() []float32 { return b.Data[:b.N] }

// PoolOptions bounds how long Checkout may spin on an empty pool.
type PoolOptions struct {
	MaxSpin int
	Timeout time.Duration
}

// DefaultPoolOptions spins for at most 10 ms.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{MaxSpin: 100000, Timeout: 10 * time.Millisecond}
}

// Pool hands out equal-size buffers allocated once at construction. A buffer
// is owned by exactly one of: the pool, a producer, a voice queue or the
// mixer.
type Pool struct {
	free  *Ring[*Buffer]
	count int
	size  int
	opts  PoolOptions
}

// NewPool allocates count buffers of size samples each.
func NewPool(count, size int, opts PoolOptions) *Pool {
	p := &Pool{free: NewRing[*Buffer](count), count: count, size: size, opts: opts}
	backing := make([]float32, count*size)
	for i := 0; i < count; i++ {
		p.free.Push(&Buffer{Data: backing[i*size : (i+1)*size : (i+1)*size]})
	}
	return p
}

// Count returns the number of buffers the pool owns in total.
func (p *Pool) Count() int { return p.count }

// BufferSize returns the capacity of each buffer in samples.
func (p *Pool) BufferSize() int { return p.size }

// Available returns the approximate number of free buffers.
func (p *Pool) Available() int { return p.free.Len() }

// Checkout takes a free buffer, yielding the processor while the pool is
// empty. It gives up after MaxSpin attempts or Timeout, whichever is first.
func (p *Pool) Checkout() (*Buffer, bool) {
	var deadline time.Time
	for spin := 0; ; spin++ {
		if b, ok := p.free.Pop(); ok {
			return b, true
		}
		if spin >= p.opts.MaxSpin {
			return nil, false
		}
		if p.opts.Timeout > 0 {
			if deadline.IsZero() {
				deadline = time.Now().Add(p.opts.Timeout)
			} else if time.Now().After(deadline) {
				return nil, false
			}
		}
		runtime.Gosched()
	}
}

// Return gives b back to the pool. It never blocks.
func (p *Pool) Return(b *Buffer) {
	if b == nil {
		return
	}
	b.N = 0
	p.free.Push(b)
}
