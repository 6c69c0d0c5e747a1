// Package modal derives damped modal parameters from an eigendecomposition of
// a spring-mass system and reduces them to the perceptually distinct modes.
package modal

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-modal/eigen"
	"github.com/cwbudde/algo-modal/rpc"
	"github.com/cwbudde/algo-modal/springmass"
	"gonum.org/v1/gonum/mat"
)

// Audible band limits in Hz.
const (
	MinFreq = 20.0
	MaxFreq = 22000.0
)

// ErrNoAudibleModes reports a system with no mode inside the audible band.
var ErrNoAudibleModes = errors.New("modal: no audible modes")

// PseudoInverter computes a Moore-Penrose pseudo-inverse. *rpc.Bridge
// implements it.
type PseudoInverter interface {
	Pinv(a mat.Matrix) (*mat.Dense, error)
}

// LocalPinv computes pseudo-inverses in-process.
type LocalPinv struct{}

// Pinv implements PseudoInverter.
func (LocalPinv) Pinv(a mat.Matrix) (*mat.Dense, error) {
	return eigen.Pinv(a)
}

// Model is the reduced modal description of one object. Column i of Gain and
// row i of GainPinv belong to mode i.
type Model struct {
	Gain        *mat.Dense
	GainPinv    *mat.Dense
	Mass        []float64
	OmegaPlus   []complex128
	OmegaMinus  []complex128
	Frequencies []float64
}

// Modes returns the number of retained modes.
func (m *Model) Modes() int { return len(m.OmegaPlus) }

// Dof returns the length of the force vectors the model accepts.
func (m *Model) Dof() int {
	_, c := m.GainPinv.Dims()
	return c
}

// Poles returns the damped pole pair of an eigenvalue:
// omega+- = (-delta +- sqrt(delta^2 - 4 lambda)) / 2 with delta = fluid*lambda + viscous.
func Poles(lambda, fluid, viscous float64) (plus, minus complex128) {
	delta := complex(fluid*lambda+viscous, 0)
	rho := cmplx.Sqrt(delta*delta - complex(4*lambda, 0))
	return (-delta + rho) / 2, (-delta - rho) / 2
}

// Frequency returns the oscillation frequency in Hz of a pole.
func Frequency(omega complex128) float64 {
	return imag(omega) / (2 * math.Pi)
}

// Control points of the clustering threshold.
const (
	x0, x1, x2 = 15.0, 2000.0, 8000.0
	y0, y1, y2 = 1.0, 4.0, 90.0
)

// Threshold returns the largest frequency gap in Hz under which two modes are
// heard as one. It is piecewise linear through (15,1), (2000,4) and (8000,90)
// and keeps the last slope beyond 8 kHz.
func Threshold(f float64) float64 {
	if f <= x1 {
		return y0 + (y1-y0)/(x1-x0)*(f-x0)
	}
	return y1 + (y2-y1)/(x2-x1)*(f-x1)
}

// Derive builds the reduced model. Clustering walks the eigenvalues in
// ascending order, so res is sorted in place first. mass is the 3V mass
// diagonal, consumed positionally alongside the eigenvalues.
func Derive(res *eigen.Result, mass []float64, material springmass.Material, pinv PseudoInverter) (*Model, error) {
	eigen.SortAscending(res)
	n := len(res.Values)
	rows, cols := res.Vectors.Dims()
	if cols != n || len(mass) < n {
		return nil, fmt.Errorf("modal: %d eigenvalues, %dx%d vectors, %d masses", n, rows, cols, len(mass))
	}

	var (
		columns [][]float64
		m       = &Model{}
	)
	for i := 0; i < n; {
		plus, minus := Poles(res.Values[i], material.Fluid, material.Viscous)
		f := Frequency(plus)
		if f < MinFreq || f > MaxFreq {
			i++
			continue
		}
		m.OmegaPlus = append(m.OmegaPlus, plus)
		m.OmegaMinus = append(m.OmegaMinus, minus)
		m.Mass = append(m.Mass, mass[i])
		m.Frequencies = append(m.Frequencies, f)

		col := mat.Col(nil, i, res.Vectors)
		limit := Threshold(f)
		j := i + 1
		for ; j < n; j++ {
			next, _ := Poles(res.Values[j], material.Fluid, material.Viscous)
			if Frequency(next)-f > limit {
				break
			}
			for r := range col {
				col[r] += res.Vectors.At(r, j)
			}
		}
		columns = append(columns, col)
		i = j
	}
	if len(columns) == 0 {
		return nil, ErrNoAudibleModes
	}

	m.Gain = mat.NewDense(rows, len(columns), nil)
	for c, col := range columns {
		m.Gain.SetCol(c, col)
	}

	if pinv == nil {
		pinv = LocalPinv{}
	}
	p, err := pinv.Pinv(m.Gain)
	if err != nil {
		return nil, fmt.Errorf("modal: pseudo-inverse: %w", err)
	}
	if pr, _ := p.Dims(); pr != len(columns) {
		return nil, fmt.Errorf("modal: pseudo-inverse failed: gain has %d columns, inverse has %d rows: %w", len(columns), pr, rpc.ErrProtocol)
	}
	m.GainPinv = p
	return m, nil
}
