package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-modal/internal/cli"
	"github.com/cwbudde/algo-modal/internal/wavio"
	"github.com/cwbudde/algo-modal/session"
)

func main() {
	referencePath := flag.String("reference", "reference/impact.wav", "Reference WAV path")
	presetPath := flag.String("preset", "", "Base preset JSON path (optional)")
	outputPreset := flag.String("output-preset", "out/fit/fitted.json", "Path to write the fitted material preset")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	meshPath := flag.String("mesh", "", "OBJ mesh path (overrides the preset's mesh_path and -shape)")
	shape := flag.String("shape", "plate", "Built-in shape when no mesh is given: plate|box")
	cells := flag.Int("cells", 6, "Grid cells per side of the built-in shape")
	size := flag.Float64("size", 0.3, "Edge length of the built-in shape in meters")
	material := flag.String("material", "", "Material to start from and to write (default: \"default\")")
	speed := flag.Float64("speed", 1, "Relative impact speed")
	at := flag.String("at", "", "Contact point x,y,z (default: centroid of -triangle)")
	triangle := flag.Int("triangle", -1, "Triangle whose centroid is struck (-1 = middle triangle)")
	sampleRate := flag.Int("sample-rate", 0, "Analysis sample rate (0 = preset value)")
	maxDuration := flag.Float64("max-duration", 2.0, "Longest rendered and compared duration in seconds")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	workers := flag.String("workers", "auto", "Parallel workers running independent Mayfly rounds (number or 'auto')")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	verbose := flag.Bool("v", false, "Log worker output")
	flag.Parse()

	if *maxEvals < 1 {
		cli.Die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		cli.Die("time-budget must be > 0")
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < 2**mayflyPop {
		*mayflyRoundEvals = 2 * *mayflyPop
	}
	nWorkers, err := cli.ParseWorkers(*workers)
	if err != nil {
		cli.Die("invalid --workers: %v", err)
	}
	if *reportPath == "" {
		*reportPath = strings.TrimSuffix(*outputPreset, ".json") + ".report.json"
	}

	cfg, err := cli.LoadConfig(*presetPath, *verbose)
	if err != nil {
		cli.Die("Error: %v", err)
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	name := *material
	if name == "" {
		name = session.DefaultMaterialName
	}
	base, err := cfg.Material(name)
	if err != nil {
		cli.Die("Error: %v", err)
	}

	reference, err := wavio.ReadMonoAt(*referencePath, cfg.SampleRate)
	if err != nil {
		cli.Die("failed to read reference: %v", err)
	}
	maxFrames := int(*maxDuration * float64(cfg.SampleRate))
	if len(reference) > maxFrames {
		reference = reference[:maxFrames]
	}
	if len(reference) == 0 {
		cli.Die("reference %s is empty", *referencePath)
	}
	cfg.Duration = math.Min(*maxDuration, float64(len(reference))/float64(cfg.SampleRate))

	m, err := cli.MeshFlags{Path: *meshPath, Shape: *shape, Cells: *cells, Size: *size}.Load(cfg.MeshPath)
	if err != nil {
		cli.Die("Error loading mesh: %v", err)
	}
	contact, err := cli.Contact(m, *at, *triangle)
	if err != nil {
		cli.Die("Error: %v", err)
	}

	s := session.New(*cfg)
	defer s.Close(context.Background())

	fmt.Printf("Fitting material %q to %s (%d frames at %d Hz, %d workers)\n",
		name, *referencePath, len(reference), cfg.SampleRate, nWorkers)

	res, err := runOptimization(&optimizationConfig{
		reference:        reference,
		session:          s,
		mesh:             m,
		contact:          contact,
		speed:            *speed,
		base:             base,
		defs:             materialKnobs,
		initCandidate:    initCandidate(base),
		sampleRate:       cfg.SampleRate,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          nWorkers,
		topK:             *topK,
	})
	if err != nil {
		cli.Die("optimization failed: %v", err)
	}

	if err := writeJSON(*outputPreset, materialPreset(name, res.bestMat, cfg.SampleRate)); err != nil {
		cli.Die("failed to write preset: %v", err)
	}
	report := runReport{
		ReferencePath:  *referencePath,
		OutputPreset:   *outputPreset,
		Material:       name,
		SampleRate:     cfg.SampleRate,
		DurationSec:    res.elapsed,
		Evaluations:    res.evals,
		MayflyVariant:  strings.ToLower(*mayflyVariant),
		BestScore:      res.bestMetrics.Score,
		BestSimilarity: res.bestMetrics.Similarity,
		BestMetrics:    res.bestMetrics,
		BestKnobs:      knobMap(res.best, materialKnobs),
		TopCandidates:  res.top,
	}
	if err := writeJSON(*reportPath, report); err != nil {
		cli.Die("failed to write report: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best=%.4f similarity=%.2f%%\n",
		res.evals, res.elapsed, res.bestMetrics.Score, res.bestMetrics.Similarity*100.0)
	fmt.Printf("Wrote preset: %s\n", *outputPreset)
	fmt.Printf("Wrote report: %s\n", *reportPath)
}
