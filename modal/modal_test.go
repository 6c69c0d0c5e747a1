package modal

import (
	"bytes"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-modal/eigen"
	"github.com/cwbudde/algo-modal/rpc"
	"github.com/cwbudde/algo-modal/springmass"
	"gonum.org/v1/gonum/mat"
)

func lambdaFor(hz float64) float64 {
	w := 2 * math.Pi * hz
	return w * w
}

func undamped() springmass.Material {
	m := springmass.DefaultMaterial()
	m.Fluid = 0
	m.Viscous = 0
	return m
}

func TestUndampedPolesAreConjugateImaginary(t *testing.T) {
	for _, hz := range []float64{20, 440, 9000} {
		lambda := lambdaFor(hz)
		plus, minus := Poles(lambda, 0, 0)
		if real(plus) != 0 || real(minus) != 0 {
			t.Fatalf("%g Hz: poles %v %v should be purely imaginary", hz, plus, minus)
		}
		if plus != -minus {
			t.Fatalf("%g Hz: poles %v %v should be negated", hz, plus, minus)
		}
		want := math.Sqrt(lambda) / (2 * math.Pi)
		if got := math.Abs(imag(plus)) / (2 * math.Pi); math.Abs(got-want) > 1e-9*want {
			t.Fatalf("%g Hz: |Im(w+)|/2pi = %g, want %g", hz, got, want)
		}
	}
}

func TestDampedPolesDecay(t *testing.T) {
	plus, minus := Poles(lambdaFor(1000), 1e-7, 2)
	if real(plus) >= 0 || real(minus) >= 0 {
		t.Fatalf("damped poles must have negative real parts: %v %v", plus, minus)
	}
	if math.Abs(Frequency(plus)-1000) > 1 {
		t.Fatalf("lightly damped frequency = %g, want ~1000", Frequency(plus))
	}
	// Overdamped: delta^2 > 4 lambda gives real poles, i.e. zero frequency.
	plus, _ = Poles(1, 0, 10)
	if imag(plus) != 0 {
		t.Fatalf("overdamped pole should be real, got %v", plus)
	}
}

func TestThresholdControlPoints(t *testing.T) {
	cases := []struct{ f, want float64 }{
		{15, 1},
		{2000, 4},
		{8000, 90},
		{14000, 176},
	}
	for _, tc := range cases {
		if got := Threshold(tc.f); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Threshold(%g) = %g, want %g", tc.f, got, tc.want)
		}
	}
	if Threshold(5000) <= Threshold(1000) {
		t.Fatalf("threshold must grow with frequency")
	}
}

// syntheticResult has modes at the given frequencies with vector columns
// e_i + 10*e_{i+1} (rows = len(freqs)+1).
func syntheticResult(freqs []float64) *eigen.Result {
	n := len(freqs)
	vals := make([]float64, n)
	vecs := mat.NewDense(n+1, n, nil)
	for i, f := range freqs {
		vals[i] = lambdaFor(f)
		vecs.Set(i, i, 1)
		vecs.Set(i+1, i, 10)
	}
	return &eigen.Result{Values: vals, Vectors: vecs}
}

func TestClusteringMergesCloseModes(t *testing.T) {
	// 5 Hz is inaudible; 100 and 100.5 Hz merge; 200 Hz stays distinct.
	res := syntheticResult([]float64{5, 100, 100.5, 200})
	orig := mat.DenseCopyOf(res.Vectors)
	mass := []float64{1, 2, 3, 4, 5}

	m, err := Derive(res, mass, undamped(), nil)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if m.Modes() != 2 {
		t.Fatalf("modes = %d, want 2 (freqs %v)", m.Modes(), m.Frequencies)
	}
	if math.Abs(m.Frequencies[0]-100) > 1e-9 || math.Abs(m.Frequencies[1]-200) > 1e-9 {
		t.Fatalf("frequencies = %v, want [100 200]", m.Frequencies)
	}
	// Representative keeps the first mode's mass and poles.
	if m.Mass[0] != 2 || m.Mass[1] != 4 {
		t.Fatalf("mass = %v, want [2 4]", m.Mass)
	}
	wantPlus, _ := Poles(lambdaFor(100), 0, 0)
	if cmplx.Abs(m.OmegaPlus[0]-wantPlus) > 1e-9 {
		t.Fatalf("omega+ = %v, want %v", m.OmegaPlus[0], wantPlus)
	}

	rows, _ := orig.Dims()
	for r := 0; r < rows; r++ {
		want := orig.At(r, 1) + orig.At(r, 2)
		if got := m.Gain.At(r, 0); got != want {
			t.Fatalf("merged gain row %d = %g, want %g", r, got, want)
		}
		if got := m.Gain.At(r, 1); got != orig.At(r, 3) {
			t.Fatalf("distinct gain row %d = %g, want %g", r, got, orig.At(r, 3))
		}
	}

	pr, pc := m.GainPinv.Dims()
	if pr != 2 || pc != rows {
		t.Fatalf("pinv dims = %dx%d, want 2x%d", pr, pc, rows)
	}
	if m.Dof() != rows {
		t.Fatalf("Dof = %d, want %d", m.Dof(), rows)
	}
}

func TestClusteringKeepsModesAboveThreshold(t *testing.T) {
	// Threshold(1000) ~ 2.5 Hz, so a 3 Hz gap stays distinct.
	m, err := Derive(syntheticResult([]float64{1000, 1003}), []float64{1, 1, 1}, undamped(), nil)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if m.Modes() != 2 {
		t.Fatalf("modes = %d, want 2", m.Modes())
	}
}

func TestDeriveSortsInput(t *testing.T) {
	res := syntheticResult([]float64{300, 100})
	m, err := Derive(res, []float64{1, 1, 1}, undamped(), nil)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if m.Frequencies[0] > m.Frequencies[1] {
		t.Fatalf("frequencies not ascending: %v", m.Frequencies)
	}
}

func TestNoAudibleModes(t *testing.T) {
	_, err := Derive(syntheticResult([]float64{1, 30000}), []float64{1, 1, 1}, undamped(), nil)
	if !errors.Is(err, ErrNoAudibleModes) {
		t.Fatalf("got %v, want ErrNoAudibleModes", err)
	}
}

type wrongPinv struct{}

func (wrongPinv) Pinv(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	return mat.NewDense(c+1, r, nil), nil
}

func TestPinvDimensionMismatchIsFatal(t *testing.T) {
	_, err := Derive(syntheticResult([]float64{100, 200}), []float64{1, 1, 1}, undamped(), wrongPinv{})
	if !errors.Is(err, rpc.ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}

func TestModelJSONRoundTrip(t *testing.T) {
	material := springmass.DefaultMaterial()
	material.Fluid = 1e-7
	material.Viscous = 3
	m, err := Derive(syntheticResult([]float64{150, 900, 4000}), []float64{1, 2, 3, 4}, material, nil)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Modes() != m.Modes() {
		t.Fatalf("modes = %d, want %d", got.Modes(), m.Modes())
	}
	for i := range m.OmegaPlus {
		if got.OmegaPlus[i] != m.OmegaPlus[i] || got.OmegaMinus[i] != m.OmegaMinus[i] {
			t.Fatalf("mode %d poles changed: %v/%v vs %v/%v", i, got.OmegaPlus[i], got.OmegaMinus[i], m.OmegaPlus[i], m.OmegaMinus[i])
		}
	}
	if !mat.Equal(got.GainPinv, m.GainPinv) || !mat.Equal(got.Gain, m.Gain) {
		t.Fatalf("matrices changed in round trip")
	}

	if _, err := Load(bytes.NewBufferString(`{"gain":{"rows":2,"cols":1,"data":[1]}}`)); err == nil {
		t.Fatalf("expected error for inconsistent model")
	}
}
