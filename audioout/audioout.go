// Package audioout connects an rtaudio.Mixer to a sound device.
package audioout

import (
	"fmt"
	"strings"
	"time"

	"github.com/cwbudde/algo-modal/rtaudio"
)

// Backend names an output implementation.
type Backend string

const (
	BackendOto  Backend = "oto"
	BackendBeep Backend = "beep"
	// BackendNull pulls from the mixer at real-time pace and discards the
	// samples. It needs no sound device.
	BackendNull Backend = "null"
)

// ParseBackend accepts a backend name case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendOto, BackendBeep, BackendNull:
		return b, nil
	}
	return "", fmt.Errorf("unknown audio backend %q (want oto, beep or null)", s)
}

// Config selects the backend and device latency.
type Config struct {
	Backend Backend       `json:"backend"`
	Latency time.Duration `json:"latency"`
}

// DefaultConfig uses oto with 100 ms of device buffering.
func DefaultConfig() Config {
	return Config{Backend: BackendOto, Latency: 100 * time.Millisecond}
}

// Sink is an open output. Close stops pulling from the mixer.
type Sink interface {
	Close() error
}

// Open starts pulling from m through the configured backend. The sample rate
// and channel count come from the mixer.
func Open(cfg Config, m *rtaudio.Mixer) (Sink, error) {
	mc := m.Config()
	if mc.SampleRate <= 0 {
		return nil, fmt.Errorf("audioout: mixer sample rate %d", mc.SampleRate)
	}
	if cfg.Latency <= 0 {
		cfg.Latency = DefaultConfig().Latency
	}
	switch cfg.Backend {
	case BackendOto, "":
		return openOto(cfg, m)
	case BackendBeep:
		return openBeep(cfg, m)
	case BackendNull:
		return openNull(cfg, m), nil
	}
	return nil, fmt.Errorf("audioout: unknown backend %q", cfg.Backend)
}
