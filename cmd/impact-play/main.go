package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cwbudde/algo-modal/audioout"
	"github.com/cwbudde/algo-modal/impact"
	"github.com/cwbudde/algo-modal/internal/cli"
	"github.com/cwbudde/algo-modal/mesh"
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
	backend := flag.String("backend", "", "Audio backend override: oto|beep|null")
	speed := flag.Float64("speed", 1, "Relative impact speed")
	strikes := flag.Int("strikes", 8, "Number of strikes on random triangles")
	interval := flag.Duration("interval", 300*time.Millisecond, "Time between strikes")
	seed := flag.Uint64("seed", 1, "Random seed for strike positions")
	interactive := flag.Bool("stdin", false, "Read strikes from stdin: \"x,y,z [speed]\" or \"tri N [speed]\" per line")
	verbose := flag.Bool("v", false, "Log worker output")
	flag.Parse()

	cfg, err := cli.LoadConfig(*presetPath, *verbose)
	if err != nil {
		cli.Die("Error: %v", err)
	}
	if *backend != "" {
		b, err := audioout.ParseBackend(*backend)
		if err != nil {
			cli.Die("Error: %v", err)
		}
		cfg.Audio.Backend = b
	}
	mat, err := cfg.Material(*material)
	if err != nil {
		cli.Die("Error: %v", err)
	}
	m, err := cli.MeshFlags{Path: *meshPath, Shape: *shape, Cells: *cells, Size: *size}.Load(cfg.MeshPath)
	if err != nil {
		cli.Die("Error loading mesh: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(*cfg)
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	start := time.Now()
	obj, err := s.Build(ctx, m, mat)
	if err != nil {
		cli.Die("Error building object: %v", err)
	}
	fmt.Printf("Built %d modes in %s\n", obj.Model().Modes(), time.Since(start).Round(time.Millisecond))

	if err := s.OpenAudio(); err != nil {
		cli.Die("Error opening audio: %v", err)
	}

	if *interactive {
		readStrikes(ctx, s, obj, m, *speed)
	} else {
		rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
		for i := 0; i < *strikes && ctx.Err() == nil; i++ {
			tri := rng.IntN(m.TriangleCount())
			s.Strike(obj, impact.Collision{Contacts: []mgl64.Vec3{m.Centroid(tri)}, Speed: *speed})
			fmt.Printf("Strike %d on triangle %d\n", i+1, tri)
			sleep(ctx, *interval)
		}
	}

	// Let the last sound ring out.
	sleep(ctx, time.Duration(cfg.Duration*float64(time.Second))+cfg.Audio.Latency)
	st := s.Mixer().Stats()
	fmt.Printf("Played %d sounds (%d dropped, %d underruns)\n", st.Played, st.Dropped, st.Underruns)
}

func readStrikes(ctx context.Context, s *session.Session, obj *impact.Object, m *mesh.Mesh, speed float64) {
	sc := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil && sc.Scan() {
		c, err := parseStrike(sc.Text(), m, speed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if c.Speed == 0 && len(c.Contacts) == 0 {
			continue
		}
		if !s.Strike(obj, c) {
			fmt.Fprintf(os.Stderr, "strike refused\n")
		}
	}
}

// parseStrike reads "x,y,z [speed]" or "tri N [speed]". Blank lines and
// comments yield an empty collision.
func parseStrike(line string, m *mesh.Mesh, speed float64) (impact.Collision, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return impact.Collision{}, nil
	}
	var (
		contact mgl64.Vec3
		rest    []string
		err     error
	)
	if fields[0] == "tri" {
		if len(fields) < 2 {
			return impact.Collision{}, fmt.Errorf("tri needs an index")
		}
		tri, err := strconv.Atoi(fields[1])
		if err != nil || tri < 0 || tri >= m.TriangleCount() {
			return impact.Collision{}, fmt.Errorf("triangle %q out of range [0,%d)", fields[1], m.TriangleCount())
		}
		contact, rest = m.Centroid(tri), fields[2:]
	} else {
		if contact, err = cli.ParseVec3(fields[0]); err != nil {
			return impact.Collision{}, err
		}
		rest = fields[1:]
	}
	if len(rest) > 0 {
		if speed, err = strconv.ParseFloat(rest[0], 64); err != nil {
			return impact.Collision{}, fmt.Errorf("speed %q: %w", rest[0], err)
		}
	}
	return impact.Collision{Contacts: []mgl64.Vec3{contact}, Speed: speed}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
