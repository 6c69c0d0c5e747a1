package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-modal/impact"
	"github.com/cwbudde/algo-modal/internal/cli"
	"github.com/cwbudde/algo-modal/internal/wavio"
	"github.com/cwbudde/algo-modal/session"
	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	meshPath := flag.String("mesh", "", "OBJ mesh path (overrides the preset's mesh_path and -shape)")
	shape := flag.String("shape", "plate", "Built-in shape when no mesh is given: plate|box")
	cells := flag.Int("cells", 8, "Grid cells per side of the built-in shape")
	size := flag.Float64("size", 0.3, "Edge length of the built-in shape in meters")
	material := flag.String("material", "", "Material name from the preset (default: \"default\")")
	speed := flag.Float64("speed", 1, "Relative impact speed")
	at := flag.String("at", "", "Contact point x,y,z (default: centroid of -triangle)")
	triangle := flag.Int("triangle", -1, "Triangle whose centroid is struck (-1 = middle triangle)")
	strikes := flag.Int("strikes", 1, "Number of strikes")
	interval := flag.Float64("interval", 0.25, "Seconds between strikes")
	duration := flag.Float64("duration", 0, "Seconds rendered per strike (0 = preset value)")
	sampleRate := flag.Int("sample-rate", 0, "Render sample rate in Hz (0 = preset value)")
	stereo := flag.Bool("stereo", false, "Write a two-channel file")
	verbose := flag.Bool("v", false, "Log worker output")
	output := flag.String("output", "impact.wav", "Output WAV file path")
	flag.Parse()

	cfg, err := cli.LoadConfig(*presetPath, *verbose)
	if err != nil {
		cli.Die("Error: %v", err)
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *duration > 0 {
		cfg.Duration = *duration
	}
	if *strikes < 1 {
		cli.Die("Error: -strikes must be >= 1")
	}
	mat, err := cfg.Material(*material)
	if err != nil {
		cli.Die("Error: %v", err)
	}
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

	fmt.Printf("Building %d vertices, %d triangles...\n", len(m.Vertices), m.TriangleCount())
	start := time.Now()
	obj, err := s.Build(context.Background(), m, mat)
	if err != nil {
		cli.Die("Error building object: %v", err)
	}
	model := obj.Model()
	fmt.Printf("Built in %s: %d audible modes, %.1f..%.1f Hz\n",
		time.Since(start).Round(time.Millisecond), model.Modes(),
		model.Frequencies[0], model.Frequencies[model.Modes()-1])

	p := cfg.SynthParams()
	step := int(math.Round(*interval * float64(cfg.SampleRate)))
	mix := make([]float64, (*strikes-1)*step+p.Length())
	for i := 0; i < *strikes; i++ {
		g := s.Generator(obj, impact.Collision{Contacts: []mgl64.Vec3{contact}, Speed: *speed})
		pos := i * step
		for chunk := range g.Chunks() {
			for _, x := range chunk {
				mix[pos] += float64(x)
				pos++
			}
		}
	}

	lim := s.Mixer().Config().Limiter
	samples := make([]float32, len(mix))
	for i, x := range mix {
		samples[i] = lim.Process(float32(x))
	}

	write := wavio.WriteMono
	if *stereo {
		write = wavio.WriteStereo
	}
	if err := write(*output, samples, cfg.SampleRate); err != nil {
		cli.Die("Error writing WAV file: %v", err)
	}
	fmt.Printf("Successfully wrote %s (%d frames, %d strikes)\n", *output, len(samples), *strikes)
}
