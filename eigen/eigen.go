// Package eigen computes the symmetric eigendecomposition of a stiffness
// matrix, in-process for small systems and on the numeric worker otherwise.
package eigen

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-modal/rpc"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold is the largest dimension solved in-process; bigger
// systems go to the worker.
const DefaultThreshold = 200

// ErrNotConverged reports a failed local factorization.
var ErrNotConverged = errors.New("eigen: factorization did not converge")

// Result holds eigenvalues in ascending order and the matching eigenvector
// columns.
type Result struct {
	Values  []float64
	Vectors *mat.Dense
}

// Dim returns the problem size.
func (r *Result) Dim() int { return len(r.Values) }

// Remote solves eigenproblems out of process. *rpc.EigenClient implements it.
type Remote interface {
	Solve(ctx context.Context, a mat.Matrix) (rpc.EigenResponse, error)
}

// RemoteFunc resolves the remote solver on first use, so the worker is only
// started when a large system actually needs it.
type RemoteFunc func(ctx context.Context) (Remote, error)

// Solver picks a local or remote decomposition by dimension.
type Solver struct {
	Threshold int
	Remote    RemoteFunc
}

// NewSolver returns a solver with the default threshold.
func NewSolver(remote RemoteFunc) *Solver {
	return &Solver{Threshold: DefaultThreshold, Remote: remote}
}

// Solve decomposes the symmetric matrix a. Results are always sorted
// ascending by eigenvalue.
func (s *Solver) Solve(ctx context.Context, a mat.Symmetric) (*Result, error) {
	n := a.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("eigen: empty matrix")
	}
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if n <= threshold || s.Remote == nil {
		return SolveLocalContext(ctx, a)
	}

	remote, err := s.Remote(ctx)
	if err != nil {
		return nil, fmt.Errorf("eigen: acquire worker: %w", err)
	}
	resp, err := remote.Solve(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("eigen: remote solve (n=%d): %w", n, err)
	}
	res := &Result{Values: resp.Real, Vectors: resp.Vectors}
	SortAscending(res)
	return res, nil
}

// SolveLocal factorizes a with gonum's symmetric eigensolver.
func SolveLocal(a mat.Symmetric) (*Result, error) {
	var es mat.EigenSym
	if !es.Factorize(a, true) {
		return nil, ErrNotConverged
	}
	res := &Result{Values: es.Values(nil), Vectors: mat.NewDense(a.SymmetricDim(), a.SymmetricDim(), nil)}
	es.VectorsTo(res.Vectors)
	SortAscending(res)
	return res, nil
}

// SolveLocalContext runs SolveLocal on its own goroutine and waits for it or
// for ctx. An abandoned factorization finishes in the background.
func SolveLocalContext(ctx context.Context, a mat.Symmetric) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := SolveLocal(a)
		done <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

// SortAscending reorders values ascending and permutes the vector columns
// with them.
func SortAscending(r *Result) {
	n := len(r.Values)
	vals := append([]float64(nil), r.Values...)
	idx := make([]int, n)
	floats.ArgsortStable(vals, idx)

	sorted := true
	for i, j := range idx {
		if i != j {
			sorted = false
			break
		}
	}
	if sorted {
		return
	}

	rows, _ := r.Vectors.Dims()
	vecs := mat.NewDense(rows, n, nil)
	for dst, src := range idx {
		vecs.SetCol(dst, mat.Col(nil, src, r.Vectors))
	}
	r.Values = vals
	r.Vectors = vecs
}

// Pinv returns the Moore-Penrose pseudo-inverse of a via SVD. Singular
// values below max(r,c)*eps*smax are treated as zero.
func Pinv(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, ErrNotConverged
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 0.0
	if len(s) > 0 {
		tol = float64(max(r, c)) * s[0] * epsilon
	}
	// pinv = V * diag(1/s) * U^T
	k := len(s)
	scaled := mat.NewDense(c, k, nil)
	for j := 0; j < k; j++ {
		if s[j] <= tol {
			continue
		}
		inv := 1 / s[j]
		for i := 0; i < c; i++ {
			scaled.Set(i, j, v.At(i, j)*inv)
		}
	}
	out := mat.NewDense(c, r, nil)
	out.Mul(scaled, u.T())
	return out, nil
}

// epsilon is the float64 machine epsilon.
const epsilon = 0x1p-52
