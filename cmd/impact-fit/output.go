package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-modal/analysis"
	"github.com/cwbudde/algo-modal/preset"
	"github.com/cwbudde/algo-modal/springmass"
)

type runReport struct {
	ReferencePath  string             `json:"reference_path"`
	OutputPreset   string             `json:"output_preset"`
	Material       string             `json:"material"`
	SampleRate     int                `json:"sample_rate"`
	DurationSec    float64            `json:"elapsed_seconds"`
	Evaluations    int                `json:"evaluations"`
	MayflyVariant  string             `json:"mayfly_variant"`
	BestScore      float64            `json:"best_score"`
	BestSimilarity float64            `json:"best_similarity"`
	BestMetrics    analysis.Metrics   `json:"best_metrics"`
	BestKnobs      map[string]float64 `json:"best_knobs"`
	TopCandidates  []topCandidate     `json:"top_candidates,omitempty"`
}

// materialPreset returns a preset that only sets the named material.
func materialPreset(name string, m springmass.Material, sampleRate int) *preset.File {
	return &preset.File{
		SampleRate: &sampleRate,
		Materials: map[string]preset.MaterialSetting{
			name: {
				Young:     &m.Young,
				Poisson:   &m.Poisson,
				Thickness: &m.Thickness,
				Density:   &m.Density,
				Fluid:     &m.Fluid,
				Viscous:   &m.Viscous,
			},
		},
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
