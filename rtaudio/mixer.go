// Package rtaudio moves rendered impact sounds into a real-time audio
// callback without locks, allocation or blocking on the callback side.
//
// Producers render into pooled buffers and push them onto a private queue per
// sound. New queues are announced through a registry ring that the callback
// drains before every mix. A nil buffer on a queue ends its sound.
package rtaudio

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-modal/dsp"
)

// Config sizes the mixer. All storage is allocated by NewMixer.
type Config struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	// BufferSize is the pooled buffer length in frames.
	BufferSize int `json:"buffer_size"`
	PoolSize   int `json:"pool_size"`
	// MaxVoices bounds the active set; later sounds wait in the registry.
	MaxVoices int `json:"max_voices"`
	// MaxFrames bounds the scratch used by Read and Stream per pass.
	MaxFrames int          `json:"max_frames"`
	Pool      PoolOptions  `json:"-"`
	Limiter   dsp.Logistic `json:"-"`
}

// DefaultConfig returns a stereo mixer with 200 buffers of 128 frames.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate: sampleRate,
		Channels:   2,
		BufferSize: 128,
		PoolSize:   200,
		MaxVoices:  64,
		MaxFrames:  4096,
		Pool:       DefaultPoolOptions(),
		Limiter:    dsp.NewLogistic(),
	}
}

// Stats are cumulative counters.
type Stats struct {
	Played    uint64
	Finished  uint64
	Dropped   uint64
	Underruns uint64
}

type voice struct {
	ready *Ring[*Buffer]
	cur   *Buffer
	pos   int
}

// Mixer sums active sounds into interleaved output. Process, Read and Stream
// are the consumer side and must be called from one goroutine at a time.
type Mixer struct {
	cfg      Config
	pool     *Pool
	registry *Ring[*voice]
	active   []*voice
	scratch  []float32

	// mu orders Play's Add against Close's Wait.
	mu        sync.Mutex
	producers sync.WaitGroup
	closed    atomic.Bool

	played    atomic.Uint64
	finished  atomic.Uint64
	dropped   atomic.Uint64
	underruns atomic.Uint64
}

// NewMixer allocates the pool, registry and active set.
func NewMixer(cfg Config) *Mixer {
	def := DefaultConfig(cfg.SampleRate)
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.MaxVoices <= 0 {
		cfg.MaxVoices = def.MaxVoices
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = def.MaxFrames
	}
	if cfg.Limiter.K == 0 {
		cfg.Limiter = def.Limiter
	}
	return &Mixer{
		cfg:      cfg,
		pool:     NewPool(cfg.PoolSize, cfg.BufferSize, cfg.Pool),
		registry: NewRing[*voice](cfg.MaxVoices * 2),
		active:   make([]*voice, 0, cfg.MaxVoices),
		scratch:  make([]float32, cfg.MaxFrames*cfg.Channels),
	}
}

// Config returns the effective configuration.
func (m *Mixer) Config() Config { return m.cfg }

// Pool exposes the buffer pool.
func (m *Mixer) Pool() *Pool { return m.pool }

// Stats returns a snapshot of the counters.
func (m *Mixer) Stats() Stats {
	return Stats{
		Played:    m.played.Load(),
		Finished:  m.finished.Load(),
		Dropped:   m.dropped.Load(),
		Underruns: m.underruns.Load(),
	}
}

// ActiveVoices returns the size of the active set. Consumer side only.
func (m *Mixer) ActiveVoices() int { return len(m.active) }

// Play starts a producer goroutine that renders seq into pooled buffers. The
// sound becomes audible once its first buffer is queued. If the pool stays
// empty the sound is abandoned and counted as dropped.
func (m *Mixer) Play(seq iter.Seq[[]float32]) bool {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return false
	}
	m.producers.Add(1)
	m.mu.Unlock()
	go m.produce(seq)
	return true
}

func (m *Mixer) produce(seq iter.Seq[[]float32]) {
	defer m.producers.Done()
	// One slot per pool buffer plus the end marker, so pushes cannot fail.
	v := &voice{ready: NewRing[*Buffer](m.pool.Count() + 1)}
	registered := false

chunks:
	for chunk := range seq {
		for len(chunk) > 0 {
			if m.closed.Load() {
				break chunks
			}
			b, ok := m.pool.Checkout()
			if !ok {
				m.dropped.Add(1)
				break chunks
			}
			b.N = copy(b.Data, chunk)
			chunk = chunk[b.N:]
			v.ready.Push(b)
			if !registered {
				if !m.registry.Push(v) {
					m.dropped.Add(1)
					m.release(v)
					return
				}
				registered = true
				m.played.Add(1)
			}
		}
	}
	if registered {
		v.ready.Push(nil)
	}
}

// release returns every queued buffer of an unregistered voice.
func (m *Mixer) release(v *voice) {
	for {
		b, ok := v.ready.Pop()
		if !ok {
			return
		}
		m.pool.Return(b)
	}
}

// merge moves newly registered voices into the active set.
func (m *Mixer) merge() {
	for len(m.active) < cap(m.active) {
		v, ok := m.registry.Pop()
		if !ok {
			return
		}
		m.active = append(m.active, v)
	}
}

// Process fills out with interleaved frames. It is the real-time entry point:
// it never blocks, locks or allocates.
func (m *Mixer) Process(out []float32) {
	ch := m.cfg.Channels
	frames := len(out) / ch
	for i := range out {
		out[i] = 0
	}
	m.merge()

	for i := 0; i < len(m.active); {
		if m.mixVoice(m.active[i], out, frames, ch) {
			i++
			continue
		}
		last := len(m.active) - 1
		m.active[i] = m.active[last]
		m.active[last] = nil
		m.active = m.active[:last]
		m.finished.Add(1)
	}

	lim := m.cfg.Limiter
	for f := 0; f < frames; f++ {
		y := lim.Process(out[f*ch])
		for c := 0; c < ch; c++ {
			out[f*ch+c] = y
		}
	}
}

// mixVoice adds v into channel 0 of out and reports whether v is still
// playing.
func (m *Mixer) mixVoice(v *voice, out []float32, frames, ch int) bool {
	for f := 0; f < frames; {
		if v.cur == nil {
			b, ok := v.ready.Pop()
			if !ok {
				m.underruns.Add(1)
				return true
			}
			if b == nil {
				return false
			}
			v.cur, v.pos = b, 0
		}
		src := v.cur.Samples()
		for ; f < frames && v.pos < len(src); f++ {
			out[f*ch] += src[v.pos]
			v.pos++
		}
		if v.pos >= len(src) {
			m.pool.Return(v.cur)
			v.cur = nil
		}
	}
	return true
}

// Wait blocks until every producer goroutine has finished.
func (m *Mixer) Wait() {
	m.producers.Wait()
}

// Close stops accepting sounds, makes running producers stop at their next
// chunk and waits for them.
func (m *Mixer) Close() error {
	m.mu.Lock()
	m.closed.Store(true)
	m.mu.Unlock()
	m.producers.Wait()
	return nil
}
