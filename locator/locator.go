// Package locator maps contact points on a surface to the triangle they hit.
package locator

import (
	"math"

	"github.com/cwbudde/algo-modal/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Axis selects the up direction the surface is projected along.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

const (
	// Neighbourhood is the width of the fallback search window in cells.
	Neighbourhood = 5
	border        = Neighbourhood / 2

	baryEpsilon  = 1e-6
	sliverArea   = 1e-15
	sliverStep   = 0.01
	defaultReach = 0.05
)

// Options configures a Locator.
type Options struct {
	Up Axis
	// MaxDistance is how far a query may sit off the triangle plane.
	MaxDistance float64
}

// DefaultOptions projects along +Y with a 0.05 plane tolerance.
func DefaultOptions() Options {
	return Options{Up: AxisY, MaxDistance: defaultReach}
}

// Locator bins triangles into a uniform 2D grid over the projected surface.
// Queries update the fallback triangle, so a Locator must not be shared
// between goroutines.
type Locator struct {
	m      *mesh.Mesh
	opts   Options
	u, v   int
	min    [2]float64
	inv    [2]float64
	grid   int
	stride int
	bins   [][]int
	last   int
}

// New builds the grid for m. The mesh must be valid.
func New(m *mesh.Mesh, opts Options) *Locator {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = defaultReach
	}
	l := &Locator{m: m, opts: opts}
	switch opts.Up {
	case AxisX:
		l.u, l.v = 1, 2
	case AxisZ:
		l.u, l.v = 0, 1
	default:
		l.u, l.v = 0, 2
	}

	lo, hi := m.Bounds()
	for a, ax := range [2]int{l.u, l.v} {
		l.min[a] = lo[ax]
		ext := hi[ax] - lo[ax]
		if ext <= 0 {
			ext = 1
		}
		l.inv[a] = 1 / ext
	}

	l.grid = int(math.Ceil(math.Sqrt(float64(m.TriangleCount()))))
	if l.grid < 1 {
		l.grid = 1
	}
	l.stride = l.grid + 2*border
	l.bins = make([][]int, l.stride*l.stride)

	for t := 0; t < m.TriangleCount(); t++ {
		l.bin(t)
	}
	return l
}

// GridSize returns the interior grid resolution.
func (l *Locator) GridSize() int { return l.grid }

func (l *Locator) project(p mgl64.Vec3) [2]float64 {
	return [2]float64{
		(p[l.u] - l.min[0]) * l.inv[0],
		(p[l.v] - l.min[1]) * l.inv[1],
	}
}

func (l *Locator) cell(q [2]float64) (int, int) {
	conv := func(x float64) int {
		c := int(math.Floor(x * float64(l.grid)))
		c = min(max(c, -border), l.grid-1+border)
		return c + border
	}
	return conv(q[0]), conv(q[1])
}

func (l *Locator) add(x, y, t int) {
	idx := y*l.stride + x
	bin := l.bins[idx]
	if n := len(bin); n > 0 && bin[n-1] == t {
		return
	}
	l.bins[idx] = append(bin, t)
}

func (l *Locator) bin(t int) {
	tri := l.m.Triangle(t)
	a := l.project(l.m.Vertices[tri[0]])
	b := l.project(l.m.Vertices[tri[1]])
	c := l.project(l.m.Vertices[tri[2]])
	lo := [2]float64{min(a[0], b[0], c[0]), min(a[1], b[1], c[1])}
	hi := [2]float64{max(a[0], b[0], c[0]), max(a[1], b[1], c[1])}

	area := a[0]*(b[1]-c[1]) + b[0]*(c[1]-a[1]) + c[0]*(a[1]-b[1])
	if math.Abs(area) > sliverArea {
		x0, y0 := l.cell(lo)
		x1, y1 := l.cell(hi)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				l.add(x, y, t)
			}
		}
		return
	}

	// Slivers seen edge-on: walk the bounding-box diagonal.
	for s := 0.0; s <= 1.0+1e-9; s += sliverStep {
		q := [2]float64{lo[0] + s*(hi[0]-lo[0]), lo[1] + s*(hi[1]-lo[1])}
		x, y := l.cell(q)
		l.add(x, y, t)
	}
}

// Locate returns the vertex indices of the triangle containing p. When no
// triangle matches, the last located triangle is returned (initially
// triangle 0).
func (l *Locator) Locate(p mgl64.Vec3) [3]int {
	return l.m.Triangle(l.LocateTriangle(p))
}

// LocateTriangle is Locate returning the triangle index.
func (l *Locator) LocateTriangle(p mgl64.Vec3) int {
	x, y := l.cell(l.project(p))
	if t, ok := l.search(p, l.bins[y*l.stride+x]); ok {
		l.last = t
		return t
	}
	for dy := -border; dy <= border; dy++ {
		for dx := -border; dx <= border; dx++ {
			cx, cy := x+dx, y+dy
			if cx < 0 || cy < 0 || cx >= l.stride || cy >= l.stride {
				continue
			}
			if t, ok := l.search(p, l.bins[cy*l.stride+cx]); ok {
				l.last = t
				return t
			}
		}
	}
	return l.last
}

func (l *Locator) search(p mgl64.Vec3, tris []int) (int, bool) {
	for _, t := range tris {
		tri := l.m.Triangle(t)
		if l.contains(p, l.m.Vertices[tri[0]], l.m.Vertices[tri[1]], l.m.Vertices[tri[2]]) {
			return t, true
		}
	}
	return 0, false
}

func (l *Locator) contains(p, a, b, c mgl64.Vec3) bool {
	wa, wb, wc, ok := Barycentric(p, a, b, c)
	if !ok {
		return false
	}
	const lo, hi = -baryEpsilon, 1 + baryEpsilon
	if wa < lo || wa > hi || wb < lo || wb > hi || wc < lo || wc > hi {
		return false
	}
	foot := a.Mul(wa).Add(b.Mul(wb)).Add(c.Mul(wc))
	return foot.Sub(p).Len() <= l.opts.MaxDistance
}

// Barycentric returns the weights of p's projection onto the plane of abc.
// ok is false for a degenerate triangle.
func Barycentric(p, a, b, c mgl64.Vec3) (wa, wb, wc float64, ok bool) {
	u := b.Sub(a)
	v := c.Sub(a)
	w := p.Sub(a)
	n := u.Cross(v)
	nn := n.Dot(n)
	if nn == 0 {
		return 0, 0, 0, false
	}
	wc = u.Cross(w).Dot(n) / nn
	wb = w.Cross(v).Dot(n) / nn
	wa = 1 - wb - wc
	return wa, wb, wc, true
}
