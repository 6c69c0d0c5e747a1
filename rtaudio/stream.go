package rtaudio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/gopxl/beep"
)

var (
	_ io.Reader     = (*Mixer)(nil)
	_ beep.Streamer = (*Mixer)(nil)
)

const float32Size = 4

// Read renders interleaved float32 little-endian frames into p, as expected
// by an oto player. It always fills whole frames and never reports EOF.
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := m.cfg.Channels * float32Size
	total := len(p) / frameBytes
	maxFrames := len(m.scratch) / m.cfg.Channels
	written := 0
	for total > 0 {
		frames := min(total, maxFrames)
		buf := m.scratch[:frames*m.cfg.Channels]
		m.Process(buf)
		for _, s := range buf {
			binary.LittleEndian.PutUint32(p[written:], math.Float32bits(s))
			written += float32Size
		}
		total -= frames
	}
	return written, nil
}

// Stream implements beep.Streamer. The mixer is an endless stream, so ok is
// always true. Mono configurations are duplicated to both sides.
func (m *Mixer) Stream(samples [][2]float64) (int, bool) {
	ch := m.cfg.Channels
	maxFrames := len(m.scratch) / ch
	for done := 0; done < len(samples); {
		frames := min(len(samples)-done, maxFrames)
		buf := m.scratch[:frames*ch]
		m.Process(buf)
		for f := 0; f < frames; f++ {
			l := float64(buf[f*ch])
			r := l
			if ch > 1 {
				r = float64(buf[f*ch+1])
			}
			samples[done+f] = [2]float64{l, r}
		}
		done += frames
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (m *Mixer) Err() error { return nil }
