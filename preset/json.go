// Package preset loads session configuration from JSON files and the
// environment.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-modal/audioout"
	"github.com/cwbudde/algo-modal/session"
	"github.com/cwbudde/algo-modal/springmass"
)

// File is the JSON schema for session presets. Absent fields keep their
// defaults.
type File struct {
	SampleRate     *int     `json:"sample_rate,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	ChunkSize      *int     `json:"chunk_size,omitempty"`
	EigenThreshold *int     `json:"eigen_threshold,omitempty"`
	RemotePinv     *bool    `json:"remote_pinv,omitempty"`
	WeldTolerance  *float64 `json:"weld_tolerance,omitempty"`
	BuildTimeout   string   `json:"build_timeout,omitempty"`
	MeshPath       string   `json:"mesh_path,omitempty"`

	Worker    *WorkerSetting             `json:"worker,omitempty"`
	Audio     *AudioSetting              `json:"audio,omitempty"`
	Mixer     *MixerSetting              `json:"mixer,omitempty"`
	Materials map[string]MaterialSetting `json:"materials,omitempty"`
}

// WorkerSetting overrides how the numeric worker is launched.
type WorkerSetting struct {
	Path       string   `json:"path,omitempty"`
	Args       []string `json:"args,omitempty"`
	Host       string   `json:"host,omitempty"`
	EigenPort  *int     `json:"eigen_port,omitempty"`
	BridgePort *int     `json:"bridge_port,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
}

// AudioSetting overrides the output backend.
type AudioSetting struct {
	Backend string `json:"backend,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// MixerSetting overrides mixer capacity and the output limiter.
type MixerSetting struct {
	PoolSize         *int     `json:"pool_size,omitempty"`
	MaxVoices        *int     `json:"max_voices,omitempty"`
	Channels         *int     `json:"channels,omitempty"`
	LimiterSteepness *float32 `json:"limiter_steepness,omitempty"`
}

// MaterialSetting is a partial material entry. Unknown material names start
// from the default material.
type MaterialSetting struct {
	Young     *float64 `json:"young,omitempty"`
	Poisson   *float64 `json:"poisson,omitempty"`
	Thickness *float64 `json:"thickness,omitempty"`
	Density   *float64 `json:"density,omitempty"`
	Fluid     *float64 `json:"fluid,omitempty"`
	Viscous   *float64 `json:"viscous,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of the default
// session configuration.
func LoadJSON(path string) (*session.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	cfg := session.DefaultConfig()
	if err := ApplyFile(&cfg, &f); err != nil {
		return nil, err
	}

	if cfg.MeshPath != "" && !filepath.IsAbs(cfg.MeshPath) {
		base := filepath.Dir(path)
		cfg.MeshPath = filepath.Clean(filepath.Join(base, cfg.MeshPath))
	}
	return &cfg, nil
}

// ApplyFile applies a parsed preset file onto an existing configuration.
func ApplyFile(dst *session.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.Duration != nil {
		if *f.Duration <= 0 {
			return fmt.Errorf("duration must be > 0")
		}
		dst.Duration = *f.Duration
	}
	if f.ChunkSize != nil {
		if *f.ChunkSize <= 0 {
			return fmt.Errorf("chunk_size must be > 0")
		}
		dst.ChunkSize = *f.ChunkSize
	}
	if f.EigenThreshold != nil {
		if *f.EigenThreshold <= 0 {
			return fmt.Errorf("eigen_threshold must be > 0")
		}
		dst.EigenThreshold = *f.EigenThreshold
	}
	if f.RemotePinv != nil {
		dst.RemotePinv = *f.RemotePinv
	}
	if f.WeldTolerance != nil {
		if *f.WeldTolerance < 0 {
			return fmt.Errorf("weld_tolerance must be >= 0")
		}
		dst.WeldTolerance = *f.WeldTolerance
	}
	if f.BuildTimeout != "" {
		d, err := parseDuration("build_timeout", f.BuildTimeout)
		if err != nil {
			return err
		}
		dst.BuildTimeout = d
	}
	if f.MeshPath != "" {
		dst.MeshPath = strings.TrimSpace(f.MeshPath)
	}

	if err := applyWorker(dst, f.Worker); err != nil {
		return err
	}
	if err := applyAudio(dst, f.Audio); err != nil {
		return err
	}
	if err := applyMixer(dst, f.Mixer); err != nil {
		return err
	}
	return applyMaterials(dst, f.Materials)
}

func applyWorker(dst *session.Config, w *WorkerSetting) error {
	if w == nil {
		return nil
	}
	if w.Path != "" {
		dst.Worker.Path = strings.TrimSpace(w.Path)
	}
	if len(w.Args) > 0 {
		dst.Worker.Args = append([]string(nil), w.Args...)
	}
	if w.Host != "" {
		dst.Worker.Host = strings.TrimSpace(w.Host)
	}
	if w.EigenPort != nil {
		if err := checkPort("worker.eigen_port", *w.EigenPort); err != nil {
			return err
		}
		dst.Worker.EigenPort = *w.EigenPort
	}
	if w.BridgePort != nil {
		if err := checkPort("worker.bridge_port", *w.BridgePort); err != nil {
			return err
		}
		dst.Worker.BridgePort = *w.BridgePort
	}
	if dst.Worker.EigenPort == dst.Worker.BridgePort {
		return fmt.Errorf("worker.eigen_port and worker.bridge_port must differ")
	}
	if w.Timeout != "" {
		d, err := parseDuration("worker.timeout", w.Timeout)
		if err != nil {
			return err
		}
		dst.Worker.Timeout = d
	}
	return nil
}

func applyAudio(dst *session.Config, a *AudioSetting) error {
	if a == nil {
		return nil
	}
	if a.Backend != "" {
		b, err := audioout.ParseBackend(a.Backend)
		if err != nil {
			return fmt.Errorf("audio.backend: %w", err)
		}
		dst.Audio.Backend = b
	}
	if a.Latency != "" {
		d, err := parseDuration("audio.latency", a.Latency)
		if err != nil {
			return err
		}
		dst.Audio.Latency = d
	}
	return nil
}

func applyMixer(dst *session.Config, m *MixerSetting) error {
	if m == nil {
		return nil
	}
	if m.PoolSize != nil {
		if *m.PoolSize <= 0 {
			return fmt.Errorf("mixer.pool_size must be > 0")
		}
		dst.Mixer.PoolSize = *m.PoolSize
	}
	if m.MaxVoices != nil {
		if *m.MaxVoices <= 0 {
			return fmt.Errorf("mixer.max_voices must be > 0")
		}
		dst.Mixer.MaxVoices = *m.MaxVoices
	}
	if m.Channels != nil {
		if *m.Channels < 1 || *m.Channels > 2 {
			return fmt.Errorf("mixer.channels must be 1 or 2")
		}
		dst.Mixer.Channels = *m.Channels
	}
	if m.LimiterSteepness != nil {
		if *m.LimiterSteepness <= 0 {
			return fmt.Errorf("mixer.limiter_steepness must be > 0")
		}
		dst.Mixer.Limiter.K = *m.LimiterSteepness
	}
	return nil
}

func applyMaterials(dst *session.Config, settings map[string]MaterialSetting) error {
	if len(settings) == 0 {
		return nil
	}
	if dst.Materials == nil {
		dst.Materials = make(map[string]springmass.Material)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("materials: empty material name")
		}
		m, ok := dst.Materials[name]
		if !ok {
			m = springmass.DefaultMaterial()
		}
		s := settings[name]
		set(&m.Young, s.Young)
		set(&m.Poisson, s.Poisson)
		set(&m.Thickness, s.Thickness)
		set(&m.Density, s.Density)
		set(&m.Fluid, s.Fluid)
		set(&m.Viscous, s.Viscous)
		if err := m.Validate(); err != nil {
			return fmt.Errorf("materials[%s]: %w", name, err)
		}
		dst.Materials[name] = m
	}
	return nil
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func checkPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535], got %d", key, port)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvWorkerPath   = "MODAL_WORKER_PATH"
	EnvWorkerHost   = "MODAL_WORKER_HOST"
	EnvEigenPort    = "MODAL_EIGEN_PORT"
	EnvBridgePort   = "MODAL_BRIDGE_PORT"
	EnvSampleRate   = "MODAL_SAMPLE_RATE"
	EnvAudioBackend = "MODAL_AUDIO_BACKEND"
)

// ApplyEnv overrides cfg from MODAL_* environment variables. Malformed values
// are ignored.
func ApplyEnv(cfg *session.Config) {
	if v := os.Getenv(EnvWorkerPath); v != "" {
		cfg.Worker.Path = v
	}
	if v := os.Getenv(EnvWorkerHost); v != "" {
		cfg.Worker.Host = v
	}
	if v := os.Getenv(EnvEigenPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && checkPort(EnvEigenPort, port) == nil {
			cfg.Worker.EigenPort = port
		}
	}
	if v := os.Getenv(EnvBridgePort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && checkPort(EnvBridgePort, port) == nil {
			cfg.Worker.BridgePort = port
		}
	}
	if v := os.Getenv(EnvSampleRate); v != "" {
		if sr, err := strconv.Atoi(v); err == nil && sr > 0 {
			cfg.SampleRate = sr
		}
	}
	if v := os.Getenv(EnvAudioBackend); v != "" {
		if b, err := audioout.ParseBackend(v); err == nil {
			cfg.Audio.Backend = b
		}
	}
}
