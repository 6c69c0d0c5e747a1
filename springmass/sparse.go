package springmass

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

type coord struct{ i, j int }

// DOK is a dictionary-of-keys accumulator. Repeated Add calls on the same
// entry sum.
type DOK struct {
	n       int
	entries map[coord]float64
}

// NewDOK returns an empty n x n accumulator.
func NewDOK(n int) *DOK {
	return &DOK{n: n, entries: make(map[coord]float64)}
}

// Add accumulates v into entry (i, j).
func (d *DOK) Add(i, j int, v float64) {
	d.entries[coord{i, j}] += v
}

// ToCSR compresses the accumulator. Explicit zeros are kept so cancelled
// blocks still show up in the sparsity pattern.
func (d *DOK) ToCSR() *CSR {
	keys := make([]coord, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b coord) int {
		if a.i != b.i {
			return a.i - b.i
		}
		return a.j - b.j
	})
	c := &CSR{
		n:      d.n,
		indptr: make([]int, d.n+1),
		ind:    make([]int, len(keys)),
		data:   make([]float64, len(keys)),
	}
	for k, key := range keys {
		c.indptr[key.i+1]++
		c.ind[k] = key.j
		c.data[k] = d.entries[key]
	}
	for i := 0; i < d.n; i++ {
		c.indptr[i+1] += c.indptr[i]
	}
	return c
}

// CSR is a square compressed-sparse-row matrix. It implements mat.Matrix.
type CSR struct {
	n      int
	indptr []int
	ind    []int
	data   []float64
}

var _ mat.Matrix = (*CSR)(nil)

// Dims implements mat.Matrix.
func (c *CSR) Dims() (int, int) { return c.n, c.n }

// At implements mat.Matrix.
func (c *CSR) At(i, j int) float64 {
	if i < 0 || i >= c.n || j < 0 || j >= c.n {
		panic(mat.ErrIndexOutOfRange)
	}
	row := c.ind[c.indptr[i]:c.indptr[i+1]]
	if k, ok := slices.BinarySearch(row, j); ok {
		return c.data[c.indptr[i]+k]
	}
	return 0
}

// T implements mat.Matrix.
func (c *CSR) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// NNZ returns the number of stored entries.
func (c *CSR) NNZ() int { return len(c.data) }

// MulVec computes dst = C*x. dst must have length n.
func (c *CSR) MulVec(dst []float64, x []float64) {
	for i := 0; i < c.n; i++ {
		var sum float64
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			sum += c.data[k] * x[c.ind[k]]
		}
		dst[i] = sum
	}
}

// IsSymmetric reports whether C equals its transpose within tol.
func (c *CSR) IsSymmetric(tol float64) bool {
	for i := 0; i < c.n; i++ {
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			j := c.ind[k]
			d := c.data[k] - c.At(j, i)
			if d > tol || d < -tol {
				return false
			}
		}
	}
	return true
}

// Sym expands C into a dense symmetric matrix using its upper triangle.
func (c *CSR) Sym() *mat.SymDense {
	s := mat.NewSymDense(c.n, nil)
	for i := 0; i < c.n; i++ {
		for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
			if j := c.ind[k]; j >= i {
				s.SetSym(i, j, c.data[k])
			}
		}
	}
	return s
}
