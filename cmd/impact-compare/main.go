package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-modal/analysis"
	"github.com/cwbudde/algo-modal/impact"
	"github.com/cwbudde/algo-modal/internal/cli"
	"github.com/cwbudde/algo-modal/internal/wavio"
	"github.com/cwbudde/algo-modal/session"
	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	referencePath := flag.String("reference", "reference/impact.wav", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render an impact")
	presetPath := flag.String("preset", "", "Preset JSON path for the rendered candidate")
	meshPath := flag.String("mesh", "", "OBJ mesh path for the rendered candidate")
	shape := flag.String("shape", "plate", "Built-in shape when no mesh is given: plate|box")
	cells := flag.Int("cells", 8, "Grid cells per side of the built-in shape")
	size := flag.Float64("size", 0.3, "Edge length of the built-in shape in meters")
	material := flag.String("material", "", "Material name from the preset")
	speed := flag.Float64("speed", 1, "Relative impact speed")
	triangle := flag.Int("triangle", -1, "Triangle whose centroid is struck (-1 = middle triangle)")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate in Hz")
	peaks := flag.Int("peaks", 8, "Number of spectral peaks to list per signal")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write the rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	ref, err := wavio.ReadMonoAt(*referencePath, *sampleRate)
	if err != nil {
		cli.Die("failed to read reference: %v", err)
	}

	var cand []float64
	if *candidatePath != "" {
		if cand, err = wavio.ReadMonoAt(*candidatePath, *sampleRate); err != nil {
			cli.Die("failed to read candidate: %v", err)
		}
	} else {
		rendered, err := render(*presetPath, cli.MeshFlags{Path: *meshPath, Shape: *shape, Cells: *cells, Size: *size},
			*material, *speed, *triangle, *sampleRate, float64(len(ref))/float64(*sampleRate))
		if err != nil {
			cli.Die("failed to render candidate: %v", err)
		}
		if *writeCandidate != "" {
			if err := wavio.WriteMono(*writeCandidate, rendered, *sampleRate); err != nil {
				cli.Die("failed to write candidate wav: %v", err)
			}
		}
		cand = make([]float64, len(rendered))
		for i, v := range rendered {
			cand[i] = float64(v)
		}
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			cli.Die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Printf("Time RMSE:        %.6f\n", metrics.TimeRMSE)
	fmt.Printf("Envelope RMSE:    %.1f dB\n", metrics.EnvelopeRMSEDB)
	fmt.Printf("Spectral RMSE:    %.1f dB\n", metrics.SpectralRMSEDB)
	fmt.Printf("Decay slopes:     ref=%.1f dB/s  cand=%.1f dB/s\n", metrics.RefDecayDBPerS, metrics.CandDecayDBPerS)
	fmt.Printf("Peak offset:      %.1f cents\n", metrics.PeakDiffCents)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)

	printPeaks("Reference", ref, *sampleRate, *peaks)
	printPeaks("Candidate", cand, *sampleRate, *peaks)
}

func render(presetPath string, mf cli.MeshFlags, material string, speed float64, tri, sampleRate int, duration float64) ([]float32, error) {
	cfg, err := cli.LoadConfig(presetPath, false)
	if err != nil {
		return nil, err
	}
	cfg.SampleRate = sampleRate
	if duration > 0 {
		cfg.Duration = duration
	}
	mat, err := cfg.Material(material)
	if err != nil {
		return nil, err
	}
	m, err := mf.Load(cfg.MeshPath)
	if err != nil {
		return nil, err
	}
	contact, err := cli.Contact(m, "", tri)
	if err != nil {
		return nil, err
	}

	s := session.New(*cfg)
	defer s.Close(context.Background())
	obj, err := s.Build(context.Background(), m, mat)
	if err != nil {
		return nil, err
	}
	return s.Render(obj, impact.Collision{Contacts: []mgl64.Vec3{contact}, Speed: speed}), nil
}

func printPeaks(label string, x []float64, sampleRate, count int) {
	if count < 1 {
		return
	}
	ps, err := analysis.Peaks(x, sampleRate, count)
	if err != nil {
		fmt.Printf("\n%s peaks: %v\n", label, err)
		return
	}
	fmt.Printf("\n%s peaks:\n", label)
	for i, p := range ps {
		fmt.Printf("  %2d  %9.1f Hz  %7.1f dB\n", i+1, p.Freq, 20*math.Log10(p.Mag))
	}
}
