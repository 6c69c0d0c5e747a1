// Package cli holds the flag parsing and scene loading shared by the
// command-line tools.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-modal/mesh"
	"github.com/cwbudde/algo-modal/preset"
	"github.com/cwbudde/algo-modal/session"
	"github.com/go-gl/mathgl/mgl64"
)

// Die prints an error and exits with status 1.
func Die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// LoadConfig returns the default configuration, or the preset at path if one
// is given, with MODAL_* environment overrides applied. Worker output is
// logged to stderr.
func LoadConfig(path string, verbose bool) (*session.Config, error) {
	var cfg *session.Config
	if path == "" {
		def := session.DefaultConfig()
		cfg = &def
	} else {
		var err error
		if cfg, err = preset.LoadJSON(path); err != nil {
			return nil, fmt.Errorf("load preset %q: %w", path, err)
		}
	}
	preset.ApplyEnv(cfg)

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	cfg.Worker.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, cfg.Validate()
}

// MeshFlags selects the object geometry. An OBJ path wins over the built-in
// shapes.
type MeshFlags struct {
	Path  string
	Shape string
	Cells int
	Size  float64
}

// Load returns the selected mesh. fallback is used when Path is empty.
func (f MeshFlags) Load(fallback string) (*mesh.Mesh, error) {
	path := f.Path
	if path == "" {
		path = fallback
	}
	if path != "" {
		r, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		m, err := mesh.LoadOBJ(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return m, nil
	}
	if f.Cells < 1 {
		return nil, fmt.Errorf("cells must be >= 1, got %d", f.Cells)
	}
	if f.Size <= 0 {
		return nil, fmt.Errorf("size must be > 0, got %g", f.Size)
	}
	switch strings.ToLower(f.Shape) {
	case "plate", "":
		return mesh.NewPlate(f.Cells, f.Cells, f.Size, f.Size), nil
	case "box":
		return mesh.NewBox(mgl64.Vec3{f.Size, f.Size, f.Size}, f.Cells), nil
	}
	return nil, fmt.Errorf("unknown shape %q (want plate or box)", f.Shape)
}

// ParseVec3 parses "x,y,z".
func ParseVec3(raw string) (mgl64.Vec3, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("%q is not x,y,z", raw)
	}
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("%q: %w", raw, err)
		}
		v[i] = f
	}
	return v, nil
}

// Contact returns the strike point: the parsed -at value if set, otherwise
// the centroid of triangle tri.
func Contact(m *mesh.Mesh, at string, tri int) (mgl64.Vec3, error) {
	if at != "" {
		return ParseVec3(at)
	}
	if tri < 0 {
		tri = m.TriangleCount() / 2
	}
	if tri >= m.TriangleCount() {
		return mgl64.Vec3{}, fmt.Errorf("triangle %d out of range [0,%d)", tri, m.TriangleCount())
	}
	return m.Centroid(tri), nil
}

// ParseWorkers parses a worker count. "auto" selects GOMAXPROCS.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return runtime.GOMAXPROCS(0), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
