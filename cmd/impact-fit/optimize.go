package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-modal/analysis"
	"github.com/cwbudde/algo-modal/impact"
	"github.com/cwbudde/algo-modal/mesh"
	"github.com/cwbudde/algo-modal/session"
	"github.com/cwbudde/algo-modal/springmass"
	"github.com/cwbudde/mayfly"
	"github.com/go-gl/mathgl/mgl64"
)

type topCandidate struct {
	Eval       int                `json:"eval"`
	Score      float64            `json:"score"`
	Similarity float64            `json:"similarity"`
	Knobs      map[string]float64 `json:"knobs"`
}

type optimizationConfig struct {
	reference        []float64
	session          *session.Session
	mesh             *mesh.Mesh
	contact          mgl64.Vec3
	speed            float64
	base             springmass.Material
	defs             []knobDef
	initCandidate    candidate
	sampleRate       int
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int
}

type optimizationResult struct {
	best        candidate
	bestMetrics analysis.Metrics
	bestMat     springmass.Material
	top         []topCandidate
	evals       int
	elapsed     float64
}

type optimizationState struct {
	mu      sync.Mutex
	best    candidate
	metrics analysis.Metrics
	top     []topCandidate
}

// evaluate builds the object with the candidate material, strikes it once and
// scores the rendering against the reference. Lower scores are better.
func evaluate(cfg *optimizationConfig, c candidate) (analysis.Metrics, springmass.Material, error) {
	mat, err := apply(cfg.base, c, cfg.defs)
	if err != nil {
		return analysis.Metrics{}, mat, err
	}
	obj, err := cfg.session.Build(context.Background(), cfg.mesh, mat)
	if err != nil {
		return analysis.Metrics{}, mat, err
	}
	out := cfg.session.Render(obj, impact.Collision{Contacts: []mgl64.Vec3{cfg.contact}, Speed: cfg.speed})
	x := make([]float64, len(out))
	for i, v := range out {
		x[i] = float64(v)
	}
	return analysis.Compare(cfg.reference, x, cfg.sampleRate), mat, nil
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	variant := strings.ToLower(cfg.mayflyVariant)

	best := cloneCandidate(cfg.initCandidate)
	initial, _, err := evaluate(cfg, best)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.4f similarity=%.2f%%\n", initial.Score, initial.Similarity*100.0)

	state := &optimizationState{
		best:    best,
		metrics: initial,
		top:     updateTopCandidates(nil, cfg.topK, 1, initial, cfg.defs, best),
	}

	var evals int64 = 1
	var rounds int64
	var improves int64

	var wg sync.WaitGroup
	for i := 0; i < max(1, cfg.workers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				round := atomic.AddInt64(&rounds, 1)
				budget := min(cfg.mayflyRoundEvals, remaining)
				iters := max(1, budget/(2*cfg.mayflyPop))

				mc, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d setup failed: %v\n", round, err)
					return
				}
				mc.Rand = rand.New(rand.NewSource(cfg.seed + round*7919))
				mc.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestScore(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestScore(state) + 1.0
					}
					cand := fromNormalized(pos, cfg.defs)
					m, _, err := evaluate(cfg, cand)
					if err != nil {
						return currentBestScore(state) + 0.8
					}

					state.mu.Lock()
					state.top = updateTopCandidates(state.top, cfg.topK, int(evalNum), m, cfg.defs, cand)
					improved := m.Score < state.metrics.Score
					if improved {
						state.best = cloneCandidate(cand)
						state.metrics = m
					}
					bestScore := state.metrics.Score
					state.mu.Unlock()

					if improved {
						n := atomic.AddInt64(&improves, 1)
						fmt.Printf("Improved #%d eval=%d score=%.4f sim=%.2f%%\n", n, evalNum, m.Score, m.Similarity*100.0)
					}
					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evalNum, cfg.maxEvals, time.Since(start).Seconds(), bestScore)
					}
					return m.Score
				}
				if _, err := runMayfly(mc); err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
				}
			}
		}()
	}
	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()
	mat, err := apply(cfg.base, state.best, cfg.defs)
	if err != nil {
		return nil, err
	}
	return &optimizationResult{
		best:        cloneCandidate(state.best),
		bestMetrics: state.metrics,
		bestMat:     mat,
		top:         append([]topCandidate(nil), state.top...),
		evals:       int(atomic.LoadInt64(&evals)),
		elapsed:     time.Since(start).Seconds(),
	}, nil
}

func currentBestScore(state *optimizationState) float64 {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.metrics.Score
}

func updateTopCandidates(top []topCandidate, k int, eval int, m analysis.Metrics, defs []knobDef, c candidate) []topCandidate {
	if k < 1 {
		return top
	}
	top = append(top, topCandidate{
		Eval:       eval,
		Score:      m.Score,
		Similarity: m.Similarity,
		Knobs:      knobMap(c, defs),
	})
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score < top[j].Score })
	if len(top) > k {
		top = top[:k]
	}
	return top
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}
