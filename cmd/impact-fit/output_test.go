package main

import (
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-modal/analysis"
	"github.com/cwbudde/algo-modal/preset"
	"github.com/cwbudde/algo-modal/springmass"
)

func TestFittedPresetLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit", "glass.json")
	want := springmass.Material{Young: 6e10, Poisson: 0.2, Thickness: 4e-3, Density: 2500, Fluid: 1e-7, Viscous: 5}
	if err := writeJSON(path, materialPreset("glass", want, 48000)); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	cfg, err := preset.LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	got, err := cfg.Material("glass")
	if err != nil {
		t.Fatalf("Material: %v", err)
	}
	if got != want || cfg.SampleRate != 48000 {
		t.Fatalf("loaded %+v at %d Hz, want %+v at 48000", got, cfg.SampleRate, want)
	}
}

func TestTopCandidatesStaySorted(t *testing.T) {
	var top []topCandidate
	c := candidate{Vals: []float64{1, 2, 3, 4}}
	for i, score := range []float64{0.5, 0.2, 0.9, 0.1, 0.3} {
		top = updateTopCandidates(top, 3, i+1, analysis.Metrics{Score: score}, materialKnobs, c)
	}
	if len(top) != 3 {
		t.Fatalf("kept %d candidates, want 3", len(top))
	}
	for i, want := range []float64{0.1, 0.2, 0.3} {
		if top[i].Score != want {
			t.Fatalf("top[%d].Score = %g, want %g", i, top[i].Score, want)
		}
	}
}

func TestReserveEvalStopsAtBudget(t *testing.T) {
	var evals int64 = 1
	for want := int64(2); want <= 3; want++ {
		n, ok := reserveEval(&evals, 3)
		if !ok || n != want {
			t.Fatalf("reserveEval = %d,%v, want %d,true", n, ok, want)
		}
	}
	if _, ok := reserveEval(&evals, 3); ok {
		t.Fatalf("reserved past the budget")
	}
}
