// Package synth renders modal amplitudes as a finite stream of decaying
// sinusoids.
package synth

import (
	"iter"
	"math"
	"math/cmplx"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Defaults for a single impact.
const (
	DefaultDuration  = 0.5
	DefaultChunkSize = 128
)

// Params controls the length and granularity of a rendered impact.
type Params struct {
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
	ChunkSize  int     `json:"chunk_size"`
}

// DefaultParams returns half a second in 128-sample chunks.
func DefaultParams(sampleRate int) Params {
	return Params{SampleRate: sampleRate, Duration: DefaultDuration, ChunkSize: DefaultChunkSize}
}

// Length returns the total number of samples, round(SampleRate*Duration).
func (p Params) Length() int {
	if p.SampleRate <= 0 || p.Duration <= 0 {
		return 0
	}
	return int(math.Round(float64(p.SampleRate) * p.Duration))
}

// Generator is a finite, single-pass source of samples for one impact.
// Each mode keeps a running complex value seeded with amp*w+ and advanced
// by exp(w+*dt) before every sample; a sample is the sum of twice their real
// parts, so the first one lies at t = dt.
type Generator struct {
	state     []complex128
	step      []complex128
	chunk     []float32
	remaining int
}

// NewGenerator prepares a generator for the given amplitudes and poles.
// Modes at or above Nyquist are skipped.
func NewGenerator(amps, omegaPlus []complex128, p Params) *Generator {
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	g := &Generator{
		chunk:     make([]float32, p.ChunkSize),
		remaining: p.Length(),
	}
	if g.remaining == 0 {
		return g
	}
	dt := complex(1/float64(p.SampleRate), 0)
	nyquist := float64(p.SampleRate) / 2
	n := min(len(amps), len(omegaPlus))
	for i := 0; i < n; i++ {
		w := omegaPlus[i]
		if math.Abs(imag(w))/(2*math.Pi) >= nyquist || amps[i] == 0 {
			continue
		}
		g.state = append(g.state, amps[i]*w)
		g.step = append(g.step, cmplx.Exp(w*dt))
	}
	return g
}

// Remaining returns the number of samples not yet delivered.
func (g *Generator) Remaining() int { return g.remaining }

// Next renders the next chunk. The returned slice is reused by the following
// call. ok is false once the generator is exhausted.
func (g *Generator) Next() (chunk []float32, ok bool) {
	if g.remaining <= 0 {
		return nil, false
	}
	n := min(len(g.chunk), g.remaining)
	out := g.chunk[:n]
	for s := range out {
		var sum float64
		for i, v := range g.state {
			v *= g.step[i]
			g.state[i] = v
			sum += 2 * real(v)
		}
		out[s] = float32(dspcore.FlushDenormals(sum))
	}
	for i, v := range g.state {
		g.state[i] = complex(dspcore.FlushDenormals(real(v)), dspcore.FlushDenormals(imag(v)))
	}
	g.remaining -= n
	return out, true
}

// Chunks yields the remaining chunks. Stopping the iteration abandons the
// generator; it is not resumed by a later call.
func (g *Generator) Chunks() iter.Seq[[]float32] {
	return func(yield func([]float32) bool) {
		for {
			chunk, ok := g.Next()
			if !ok {
				return
			}
			if !yield(chunk) {
				g.remaining = 0
				return
			}
		}
	}
}

// Render drains the generator into one slice.
func Render(amps, omegaPlus []complex128, p Params) []float32 {
	g := NewGenerator(amps, omegaPlus, p)
	out := make([]float32, 0, g.Remaining())
	for chunk := range g.Chunks() {
		out = append(out, chunk...)
	}
	return out
}
