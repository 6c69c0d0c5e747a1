// Package session owns the pieces of a running impact synthesizer: the
// numeric worker, the eigen solver, the mixer and the audio sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cwbudde/algo-modal/audioout"
	"github.com/cwbudde/algo-modal/eigen"
	"github.com/cwbudde/algo-modal/impact"
	"github.com/cwbudde/algo-modal/locator"
	"github.com/cwbudde/algo-modal/mesh"
	"github.com/cwbudde/algo-modal/modal"
	"github.com/cwbudde/algo-modal/rtaudio"
	"github.com/cwbudde/algo-modal/springmass"
	"github.com/cwbudde/algo-modal/synth"
	"github.com/cwbudde/algo-modal/worker"
	"golang.org/x/sync/errgroup"
)

// PinvFunc returns the pseudo-inverter used for remotely decomposed models.
type PinvFunc func(ctx context.Context) (modal.PseudoInverter, error)

// Option adjusts a session at construction.
type Option func(*Session)

// WithNumeric replaces the worker as the source of remote decompositions and
// pseudo-inverses.
func WithNumeric(remote eigen.RemoteFunc, pinv PinvFunc) Option {
	return func(s *Session) {
		s.solver.Remote = remote
		s.pinv = pinv
	}
}

// Session is safe for concurrent Build calls. Strike must be called from one
// physics goroutine per object.
type Session struct {
	cfg    Config
	worker *worker.Service
	solver *eigen.Solver
	pinv   PinvFunc
	mixer  *rtaudio.Mixer

	mu   sync.Mutex
	sink audioout.Sink
}

// New prepares a session. The worker process is only spawned by the first
// decomposition larger than EigenThreshold.
func New(cfg Config, opts ...Option) *Session {
	cfg.Mixer.SampleRate = cfg.SampleRate
	cfg.Mixer.BufferSize = cfg.ChunkSize
	s := &Session{
		cfg:    cfg,
		worker: worker.New(cfg.Worker),
		mixer:  rtaudio.NewMixer(cfg.Mixer),
	}
	s.solver = &eigen.Solver{
		Threshold: cfg.EigenThreshold,
		Remote: func(ctx context.Context) (eigen.Remote, error) {
			eig, _, err := s.worker.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return eig, nil
		},
	}
	s.pinv = func(ctx context.Context) (modal.PseudoInverter, error) {
		_, bridge, err := s.worker.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return bridge, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Mixer returns the real-time mixer fed by Strike.
func (s *Session) Mixer() *rtaudio.Mixer { return s.mixer }

// Build turns a mesh into a strikable object. On failure it returns a silent
// object together with the error, so callers can keep the object in their
// scene.
func (s *Session) Build(ctx context.Context, m *mesh.Mesh, material springmass.Material) (*impact.Object, error) {
	obj, err := s.build(ctx, m, material)
	if err != nil {
		return impact.NewSilent(), err
	}
	return obj, nil
}

func (s *Session) build(ctx context.Context, m *mesh.Mesh, material springmass.Material) (*impact.Object, error) {
	if s.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BuildTimeout)
		defer cancel()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	welded, _ := mesh.Weld(m, s.cfg.WeldTolerance)
	sys, err := springmass.Build(welded, material)
	if err != nil {
		return nil, fmt.Errorf("spring-mass model: %w", err)
	}
	res, err := s.solver.Solve(ctx, sys.DenseK())
	if err != nil {
		return nil, err
	}

	var pinv modal.PseudoInverter
	if s.cfg.RemotePinv && s.remote(sys.Dim()) {
		if pinv, err = s.pinv(ctx); err != nil {
			return nil, fmt.Errorf("numeric bridge: %w", err)
		}
	}
	model, err := modal.Derive(res, sys.Mass, material, pinv)
	if err != nil {
		return nil, err
	}
	return impact.NewObject(model, locator.New(welded, s.cfg.Locator)), nil
}

func (s *Session) remote(dim int) bool {
	return s.solver.Remote != nil && dim > s.solver.Threshold
}

// BuildRequest names one object for BuildAll.
type BuildRequest struct {
	Mesh     *mesh.Mesh
	Material springmass.Material
}

// BuildAll builds the objects concurrently. Every slot of the result holds an
// object; failed builds are silent and their errors are joined.
func (s *Session) BuildAll(ctx context.Context, reqs []BuildRequest) ([]*impact.Object, error) {
	objs := make([]*impact.Object, len(reqs))
	errs := make([]error, len(reqs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, req := range reqs {
		g.Go(func() error {
			obj, err := s.Build(ctx, req.Mesh, req.Material)
			objs[i] = obj
			if err != nil {
				errs[i] = fmt.Errorf("object %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return objs, errors.Join(errs...)
}

// Generator applies the collision to obj and returns a generator for the
// object's accumulated amplitudes. It returns nil for silent objects.
func (s *Session) Generator(obj *impact.Object, c impact.Collision) *synth.Generator {
	if obj.Silent() {
		return nil
	}
	obj.Collide(c)
	return synth.NewGenerator(obj.Amplitudes(), obj.Model().OmegaPlus, s.cfg.SynthParams())
}

// Strike applies the collision and hands the resulting sound to the mixer.
// It reports whether a sound was started.
func (s *Session) Strike(obj *impact.Object, c impact.Collision) bool {
	g := s.Generator(obj, c)
	if g == nil {
		return false
	}
	return s.mixer.Play(g.Chunks())
}

// Render applies the collision and renders the sound offline through the
// mixer's limiter.
func (s *Session) Render(obj *impact.Object, c impact.Collision) []float32 {
	g := s.Generator(obj, c)
	if g == nil {
		return make([]float32, s.cfg.SynthParams().Length())
	}
	lim := s.mixer.Config().Limiter
	out := make([]float32, 0, g.Remaining())
	for chunk := range g.Chunks() {
		for _, x := range chunk {
			out = append(out, lim.Process(x))
		}
	}
	return out
}

// OpenAudio starts pulling from the mixer with the configured backend.
func (s *Session) OpenAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return nil
	}
	sink, err := audioout.Open(s.cfg.Audio, s.mixer)
	if err != nil {
		return err
	}
	s.sink = sink
	return nil
}

// Close stops audio, waits for producers and shuts the worker down.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Close())
	}
	errs = append(errs, s.mixer.Close(), s.worker.Shutdown(ctx))
	return errors.Join(errs...)
}
