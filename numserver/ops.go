package numserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-modal/eigen"
	"github.com/cwbudde/algo-modal/rpc"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// symmetryTol is the relative asymmetry under which an eigen request is
// solved with the symmetric solver.
const symmetryTol = 1e-12

// SolveEigen answers one eigen-socket payload: a row-major N x N matrix in,
// eigenvectors then real and imaginary eigenvalue parts out.
func SolveEigen(payload []byte) ([]byte, error) {
	n, err := rpc.SquareDim(payload)
	if err != nil {
		return nil, err
	}
	a, err := rpc.DecodeMatrix(payload, n, n)
	if err != nil {
		return nil, err
	}

	if isSymmetric(a) {
		res, err := eigen.SolveLocal(symOf(a))
		if err != nil {
			return nil, err
		}
		return rpc.EncodeEigenResponse(rpc.EigenResponse{
			Vectors: res.Vectors,
			Real:    res.Values,
			Imag:    make([]float64, n),
		}), nil
	}

	var e mat.Eigen
	if !e.Factorize(a, mat.EigenRight) {
		return nil, eigen.ErrNotConverged
	}
	vals := e.Values(nil)
	var cv mat.CDense
	e.VectorsTo(&cv)
	resp := rpc.EigenResponse{
		Vectors: mat.NewDense(n, n, nil),
		Real:    make([]float64, n),
		Imag:    make([]float64, n),
	}
	for i, v := range vals {
		resp.Real[i] = real(v)
		resp.Imag[i] = imag(v)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			resp.Vectors.Set(i, j, real(cv.At(i, j)))
		}
	}
	return rpc.EncodeEigenResponse(resp), nil
}

// Dispatch decodes one bridge request and encodes its reply. Computation
// failures are reported in the reply's errmsg; only undecodable requests
// return an error.
func (s *Server) Dispatch(payload []byte) ([]byte, error) {
	var req rpc.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode request: %v: %w", err, rpc.ErrProtocol)
	}
	rets, err := s.Call(req)
	if err != nil {
		rets = []rpc.Operand{rpc.ErrorOperand(err)}
	}
	return json.Marshal(rpc.Response{Returns: rets})
}

// Call evaluates a decoded bridge request.
func (s *Server) Call(req rpc.Request) ([]rpc.Operand, error) {
	switch req.Module + "." + req.Function {
	case "numpy.matmul":
		x, y, err := twoMatrices(req)
		if err != nil {
			return nil, err
		}
		xr, xc := x.Dims()
		yr, yc := y.Dims()
		if xc != yr {
			return nil, fmt.Errorf("matmul: shapes (%d,%d) and (%d,%d) not aligned", xr, xc, yr, yc)
		}
		var out mat.Dense
		out.Mul(x, y)
		return []rpc.Operand{rpc.MatrixOperand(&out)}, nil

	case "numpy.argsort":
		if len(req.Operands) != 1 {
			return nil, fmt.Errorf("argsort takes 1 operand, got %d", len(req.Operands))
		}
		values, err := req.Operands[0].Float64s()
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(values))
		floats.ArgsortStable(values, idx)
		return []rpc.Operand{rpc.IntOperand(idx)}, nil

	case "numpy.linalg.inv":
		a, err := oneMatrix(req)
		if err != nil {
			return nil, err
		}
		var inv mat.Dense
		if err := inv.Inverse(a); err != nil {
			return nil, fmt.Errorf("inv: %v", err)
		}
		return []rpc.Operand{rpc.MatrixOperand(&inv)}, nil

	case "numpy.linalg.pinv":
		a, err := oneMatrix(req)
		if err != nil {
			return nil, err
		}
		p, err := eigen.Pinv(a)
		if err != nil {
			return nil, err
		}
		return []rpc.Operand{rpc.MatrixOperand(p)}, nil

	case "numpy.linalg.eigh":
		a, err := oneMatrix(req)
		if err != nil {
			return nil, err
		}
		if r, c := a.Dims(); r != c {
			return nil, fmt.Errorf("eigh: matrix is %dx%d, not square", r, c)
		}
		res, err := eigen.SolveLocal(symOf(a))
		if err != nil {
			return nil, err
		}
		return []rpc.Operand{rpc.VectorOperand(res.Values), rpc.MatrixOperand(res.Vectors)}, nil

	case "numpy.linalg.eig":
		a, err := oneMatrix(req)
		if err != nil {
			return nil, err
		}
		r, c := a.Dims()
		if r != c {
			return nil, fmt.Errorf("eig: matrix is %dx%d, not square", r, c)
		}
		var e mat.Eigen
		if !e.Factorize(a, mat.EigenRight) {
			return nil, eigen.ErrNotConverged
		}
		var cv mat.CDense
		e.VectorsTo(&cv)
		flat := make([]complex128, 0, r*r)
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				flat = append(flat, cv.At(i, j))
			}
		}
		return []rpc.Operand{
			rpc.ComplexOperand([]int{r}, e.Values(nil)),
			rpc.ComplexOperand([]int{r, r}, flat),
		}, nil

	case "numpy.random.normal":
		kw, err := req.KwargMap()
		if err != nil {
			return nil, err
		}
		loc, scale, size := 0.0, 1.0, 1
		if v, ok := kw["loc"].(float64); ok {
			loc = v
		}
		if v, ok := kw["scale"].(float64); ok {
			scale = v
		}
		if v, ok := kw["size"].(int); ok {
			size = v
		}
		if scale < 0 || size < 0 {
			return nil, fmt.Errorf("normal: scale=%g size=%d out of range", scale, size)
		}
		s.mu.Lock()
		dist := distuv.Normal{Mu: loc, Sigma: scale, Src: s.src}
		out := make([]float64, size)
		for i := range out {
			out[i] = dist.Rand()
		}
		s.mu.Unlock()
		return []rpc.Operand{rpc.VectorOperand(out)}, nil
	}
	return nil, fmt.Errorf("unsupported function %s.%s", req.Module, req.Function)
}

func operandMatrix(o rpc.Operand) (*mat.Dense, error) {
	if len(o.Shape) == 1 {
		values, err := o.Float64s()
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errors.New("empty operand")
		}
		return mat.NewDense(len(values), 1, values), nil
	}
	return o.Matrix()
}

func oneMatrix(req rpc.Request) (*mat.Dense, error) {
	if len(req.Operands) != 1 {
		return nil, fmt.Errorf("%s takes 1 operand, got %d", req.Function, len(req.Operands))
	}
	return operandMatrix(req.Operands[0])
}

func twoMatrices(req rpc.Request) (*mat.Dense, *mat.Dense, error) {
	if len(req.Operands) != 2 {
		return nil, nil, fmt.Errorf("%s takes 2 operands, got %d", req.Function, len(req.Operands))
	}
	x, err := operandMatrix(req.Operands[0])
	if err != nil {
		return nil, nil, err
	}
	y, err := operandMatrix(req.Operands[1])
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func isSymmetric(a mat.Matrix) bool {
	n, _ := a.Dims()
	scale := mat.Norm(a, 1)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := a.At(i, j) - a.At(j, i)
			if d > symmetryTol*scale || -d > symmetryTol*scale {
				return false
			}
		}
	}
	return true
}

func symOf(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}
