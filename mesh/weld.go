package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultWeldTolerance is the distance below which two vertices are merged.
const DefaultWeldTolerance = 1e-5

type cellKey [3]int

// Weld merges vertices closer than tol and drops vertices no triangle
// references. Vertices are bucketed in a uniform grid whose cell size follows
// the bounding box and triangle count; each lookup scans the 27 surrounding
// cells so duplicates on either side of a cell border still merge.
//
// The returned remap gives, for every input vertex, its index in the welded
// mesh (or -1 if it was dropped).
func Weld(m *Mesh, tol float64) (*Mesh, []int) {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	lo, hi := bounds(m.Vertices)
	extent := hi.Sub(lo)
	maxExtent := math.Max(extent[0], math.Max(extent[1], extent[2]))

	divisions := math.Ceil(math.Cbrt(float64(m.TriangleCount())))
	if divisions < 1 {
		divisions = 1
	}
	cell := maxExtent / divisions
	if cell < 2*tol {
		cell = 2 * tol
	}
	inv := 1.0 / cell
	tolSqr := tol * tol

	keyOf := func(v mgl64.Vec3) cellKey {
		d := v.Sub(lo)
		return cellKey{int(math.Floor(d[0] * inv)), int(math.Floor(d[1] * inv)), int(math.Floor(d[2] * inv))}
	}

	buckets := make(map[cellKey][]int)
	merged := make([]mgl64.Vec3, 0, len(m.Vertices))
	old2merged := make([]int, len(m.Vertices))

	for i, v := range m.Vertices {
		k := keyOf(v)
		found := -1
	search:
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					for _, j := range buckets[cellKey{k[0] + dx, k[1] + dy, k[2] + dz}] {
						d := merged[j].Sub(v)
						if d.Dot(d) < tolSqr {
							found = j
							break search
						}
					}
				}
			}
		}
		if found < 0 {
			found = len(merged)
			merged = append(merged, v)
			buckets[k] = append(buckets[k], found)
		}
		old2merged[i] = found
	}

	used := make([]int, len(merged))
	for i := range used {
		used[i] = -1
	}
	out := &Mesh{Triangles: make([]int, len(m.Triangles))}
	for i, idx := range m.Triangles {
		mi := old2merged[idx]
		if used[mi] < 0 {
			used[mi] = len(out.Vertices)
			out.Vertices = append(out.Vertices, merged[mi])
		}
		out.Triangles[i] = used[mi]
	}

	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = used[old2merged[i]]
	}
	return out, remap
}
