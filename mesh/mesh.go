// Package mesh holds the triangle surfaces that sounding objects are built from.
package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices  []mgl64.Vec3
	Triangles []int
}

// TriangleCount returns the number of triangles in the index buffer.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Triangle returns the vertex indices of triangle t.
func (m *Mesh) Triangle(t int) [3]int {
	i := 3 * t
	return [3]int{m.Triangles[i], m.Triangles[i+1], m.Triangles[i+2]}
}

// Validate checks the index buffer against the vertex list.
func (m *Mesh) Validate() error {
	if m == nil {
		return fmt.Errorf("nil mesh")
	}
	if len(m.Vertices) == 0 {
		return fmt.Errorf("mesh has no vertices")
	}
	if len(m.Triangles) == 0 || len(m.Triangles)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a positive multiple of 3", len(m.Triangles))
	}
	for i, idx := range m.Triangles {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("triangle index %d at position %d out of range [0,%d)", idx, i, len(m.Vertices))
		}
	}
	for i, v := range m.Vertices {
		if !isFiniteVec(v) {
			return fmt.Errorf("vertex %d is not finite: %v", i, v)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices:  append([]mgl64.Vec3(nil), m.Vertices...),
		Triangles: append([]int(nil), m.Triangles...),
	}
}

// Transform returns a copy with every vertex mapped through xf (local to world).
func (m *Mesh) Transform(xf mgl64.Mat4) *Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = mgl64.TransformCoordinate(v, xf)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo mgl64.Vec3, hi mgl64.Vec3) {
	return bounds(m.Vertices)
}

// Centroid returns the centroid of triangle t.
func (m *Mesh) Centroid(t int) mgl64.Vec3 {
	tri := m.Triangle(t)
	a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
	return a.Add(b).Add(c).Mul(1.0 / 3.0)
}

func bounds(vs []mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if len(vs) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	lo := vs[0]
	hi := vs[0]
	for _, v := range vs[1:] {
		for j := 0; j < 3; j++ {
			lo[j] = math.Min(lo[j], v[j])
			hi[j] = math.Max(hi[j], v[j])
		}
	}
	return lo, hi
}

func isFiniteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
