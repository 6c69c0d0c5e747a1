package session

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-modal/audioout"
	"github.com/cwbudde/algo-modal/eigen"
	"github.com/cwbudde/algo-modal/locator"
	"github.com/cwbudde/algo-modal/mesh"
	"github.com/cwbudde/algo-modal/rtaudio"
	"github.com/cwbudde/algo-modal/springmass"
	"github.com/cwbudde/algo-modal/synth"
	"github.com/cwbudde/algo-modal/worker"
)

// DefaultMaterialName is the material used when an object names none.
const DefaultMaterialName = "default"

// Config is everything a session needs. preset.LoadJSON fills it from a file.
type Config struct {
	SampleRate int
	// Duration is the rendered length of one impact in seconds.
	Duration  float64
	ChunkSize int

	// EigenThreshold is the largest matrix dimension decomposed in-process;
	// bigger systems go to the worker.
	EigenThreshold int
	// RemotePinv computes pseudo-inverses on the worker's bridge whenever the
	// eigendecomposition was delegated.
	RemotePinv    bool
	WeldTolerance float64
	Locator       locator.Options
	BuildTimeout  time.Duration

	Materials map[string]springmass.Material
	// MeshPath is an optional OBJ file for the command-line tools.
	MeshPath string

	Mixer  rtaudio.Config
	Audio  audioout.Config
	Worker worker.Config
}

// DefaultConfig returns a 44.1 kHz session with the stock material.
func DefaultConfig() Config {
	const sr = 44100
	return Config{
		SampleRate:     sr,
		Duration:       synth.DefaultDuration,
		ChunkSize:      synth.DefaultChunkSize,
		EigenThreshold: eigen.DefaultThreshold,
		RemotePinv:     true,
		WeldTolerance:  mesh.DefaultWeldTolerance,
		Locator:        locator.DefaultOptions(),
		BuildTimeout:   5 * time.Minute,
		Materials: map[string]springmass.Material{
			DefaultMaterialName: springmass.DefaultMaterial(),
		},
		Mixer:  rtaudio.DefaultConfig(sr),
		Audio:  audioout.DefaultConfig(),
		Worker: worker.DefaultConfig(),
	}
}

// SynthParams returns the per-impact render parameters.
func (c Config) SynthParams() synth.Params {
	return synth.Params{SampleRate: c.SampleRate, Duration: c.Duration, ChunkSize: c.ChunkSize}
}

// Material looks up a named material; an empty name selects the default.
func (c Config) Material(name string) (springmass.Material, error) {
	if name == "" {
		name = DefaultMaterialName
	}
	m, ok := c.Materials[name]
	if !ok {
		return springmass.Material{}, fmt.Errorf("unknown material %q", name)
	}
	return m, nil
}

// Validate checks the values a session cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be > 0")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if c.EigenThreshold <= 0 {
		return fmt.Errorf("eigen_threshold must be > 0")
	}
	for name, m := range c.Materials {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("materials[%s]: %w", name, err)
		}
	}
	return nil
}
