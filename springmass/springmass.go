// Package springmass turns a triangle surface into a lumped spring-mass
// system: one spring per triangle edge, one point mass per vertex.
package springmass

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-modal/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Dof is the number of translational degrees of freedom per vertex.
const Dof = 3

// ErrDegenerateGeometry reports a zero-length edge or zero-area triangle.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// areaEpsilon is the relative area (against the squared longest edge) below
// which a triangle counts as degenerate.
const areaEpsilon = 1e-12

// Node is a point mass at a vertex.
type Node struct {
	ID   int
	Pos  mgl64.Vec3
	Mass float64
}

// Spring connects two nodes.
type Spring struct {
	P, Q int
	K    float64
}

// System is an assembled spring-mass model with 3 dof per node.
type System struct {
	Nodes   []Node
	Springs []Spring

	// K is the 3V x 3V stiffness matrix.
	K *CSR
	// Mass holds the 3V lumped mass diagonal.
	Mass []float64
}

// Dim returns the matrix dimension (3 * node count).
func (s *System) Dim() int {
	return Dof * len(s.Nodes)
}

// DenseK returns K as a dense symmetric matrix for the eigen solver.
func (s *System) DenseK() *mat.SymDense {
	return s.K.Sym()
}

// MassDiagonal returns M as a gonum diagonal matrix.
func (s *System) MassDiagonal() *mat.DiagDense {
	return mat.NewDiagDense(len(s.Mass), append([]float64(nil), s.Mass...))
}

// TotalMass returns the trace of M divided by the dof count.
func (s *System) TotalMass() float64 {
	var sum float64
	for _, n := range s.Nodes {
		sum += n.Mass
	}
	return sum
}

// Build assembles the stiffness and mass matrices of m. The mesh should be
// welded first; Build treats every vertex it receives as a separate node.
func Build(m *mesh.Mesh, material Material) (*System, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := material.Validate(); err != nil {
		return nil, err
	}

	k := material.Stiffness()
	rho := material.Density * material.Thickness

	sys := &System{
		Nodes:   make([]Node, len(m.Vertices)),
		Springs: make([]Spring, 0, len(m.Triangles)),
	}
	for i, v := range m.Vertices {
		sys.Nodes[i] = Node{ID: i, Pos: v}
	}

	for t := 0; t < m.TriangleCount(); t++ {
		tri := m.Triangle(t)
		var edges [3]float64
		for e := 0; e < 3; e++ {
			p, q := tri[e], tri[(e+1)%3]
			l := m.Vertices[p].Sub(m.Vertices[q]).Len()
			if p == q || l == 0 {
				return nil, fmt.Errorf("triangle %d edge %d-%d has zero length: %w", t, p, q, ErrDegenerateGeometry)
			}
			edges[e] = l
			sys.Springs = append(sys.Springs, Spring{P: p, Q: q, K: k})
		}
		area := heronArea(edges[0], edges[1], edges[2])
		longest := math.Max(edges[0], math.Max(edges[1], edges[2]))
		if !(area > areaEpsilon*longest*longest) {
			return nil, fmt.Errorf("triangle %d has zero area: %w", t, ErrDegenerateGeometry)
		}
		third := rho * area / 3
		for _, idx := range tri {
			sys.Nodes[idx].Mass += third
		}
	}

	for i, n := range sys.Nodes {
		if n.Mass <= 0 {
			return nil, fmt.Errorf("vertex %d is not referenced by any triangle: %w", i, ErrDegenerateGeometry)
		}
	}

	sys.K = assembleStiffness(len(sys.Nodes), sys.Springs)
	sys.Mass = make([]float64, sys.Dim())
	for i, n := range sys.Nodes {
		for d := 0; d < Dof; d++ {
			sys.Mass[Dof*i+d] = n.Mass
		}
	}
	return sys, nil
}

func assembleStiffness(nodes int, springs []Spring) *CSR {
	dok := NewDOK(Dof * nodes)
	for _, s := range springs {
		p, q := Dof*s.P, Dof*s.Q
		for d := 0; d < Dof; d++ {
			dok.Add(p+d, p+d, s.K)
			dok.Add(q+d, q+d, s.K)
			dok.Add(p+d, q+d, -s.K)
			dok.Add(q+d, p+d, -s.K)
		}
	}
	return dok.ToCSR()
}

// heronArea evaluates Heron's formula on sorted side lengths, which stays
// accurate for needle-shaped triangles.
func heronArea(a, b, c float64) float64 {
	s := []float64{a, b, c}
	sort.Sort(sort.Reverse(sort.Float64Slice(s)))
	a, b, c = s[0], s[1], s[2]
	prod := (a + (b + c)) * (c - (a - b)) * (c + (a - b)) * (a + (b - c))
	if prod <= 0 {
		return 0
	}
	return 0.25 * math.Sqrt(prod)
}
