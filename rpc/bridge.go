package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Bridge is a persistent connection to the worker's JSON numeric bridge.
// Calls are serialized; only one request is ever in flight.
type Bridge struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// DialBridge connects to the bridge socket at addr.
func DialBridge(ctx context.Context, addr string, r Retry) (*Bridge, error) {
	conn, err := Dial(ctx, addr, r)
	if err != nil {
		return nil, err
	}
	return NewBridge(conn), nil
}

// NewBridge wraps an established connection.
func NewBridge(conn net.Conn) *Bridge {
	return &Bridge{conn: conn}
}

// Close closes the connection. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Close()
}

// Call sends req and returns the reply operands. Any operand carrying an
// errmsg fails the whole call with ErrNumeric.
func (b *Bridge) Call(req Request) ([]Operand, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", req.Module, req.Function, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%s.%s on closed bridge: %w", req.Module, req.Function, ErrConnection)
	}
	if err := WriteFrame(b.conn, payload); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", req.Module, req.Function, err)
	}
	reply, err := ReadFrame(b.conn)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", req.Module, req.Function, err)
	}

	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("%s.%s: decode reply: %v: %w", req.Module, req.Function, err, ErrProtocol)
	}
	for _, ret := range resp.Returns {
		if ret.Errmsg != "" {
			return nil, fmt.Errorf("%s.%s: %s: %w", req.Module, req.Function, ret.Errmsg, ErrNumeric)
		}
	}
	return resp.Returns, nil
}

func (b *Bridge) callN(req Request, n int) ([]Operand, error) {
	rets, err := b.Call(req)
	if err != nil {
		return nil, err
	}
	if len(rets) != n {
		return nil, fmt.Errorf("%s.%s returned %d operands, want %d: %w", req.Module, req.Function, len(rets), n, ErrProtocol)
	}
	return rets, nil
}

func (b *Bridge) matrixCall(module, function string, operands ...Operand) (*mat.Dense, error) {
	rets, err := b.callN(Request{Module: module, Function: function, Operands: operands}, 1)
	if err != nil {
		return nil, err
	}
	m, err := rets[0].Matrix()
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", module, function, err)
	}
	if !finite(m.RawMatrix().Data) {
		return nil, fmt.Errorf("%s.%s produced non-finite values: %w", module, function, ErrNumeric)
	}
	return m, nil
}

// MatMul returns x*y.
func (b *Bridge) MatMul(x, y mat.Matrix) (*mat.Dense, error) {
	return b.matrixCall(ModuleNumpy, "matmul", MatrixOperand(x), MatrixOperand(y))
}

// Inv returns the inverse of a square matrix.
func (b *Bridge) Inv(a mat.Matrix) (*mat.Dense, error) {
	return b.matrixCall(ModuleLinalg, "inv", MatrixOperand(a))
}

// Pinv returns the Moore-Penrose pseudo-inverse of a.
func (b *Bridge) Pinv(a mat.Matrix) (*mat.Dense, error) {
	return b.matrixCall(ModuleLinalg, "pinv", MatrixOperand(a))
}

// Eigh returns the ascending eigenvalues and eigenvector columns of a
// symmetric matrix.
func (b *Bridge) Eigh(a mat.Matrix) ([]float64, *mat.Dense, error) {
	rets, err := b.callN(Request{Module: ModuleLinalg, Function: "eigh", Operands: []Operand{MatrixOperand(a)}}, 2)
	if err != nil {
		return nil, nil, err
	}
	vals, err := rets[0].Float64s()
	if err != nil {
		return nil, nil, fmt.Errorf("eigh values: %w", err)
	}
	vecs, err := rets[1].Matrix()
	if err != nil {
		return nil, nil, fmt.Errorf("eigh vectors: %w", err)
	}
	return vals, vecs, nil
}

// Eig returns the eigenvalues and eigenvectors of a general square matrix.
func (b *Bridge) Eig(a mat.Matrix) ([]complex128, *mat.CDense, error) {
	rets, err := b.callN(Request{Module: ModuleLinalg, Function: "eig", Operands: []Operand{MatrixOperand(a)}}, 2)
	if err != nil {
		return nil, nil, err
	}
	vals, err := rets[0].Complex128s()
	if err != nil {
		return nil, nil, fmt.Errorf("eig values: %w", err)
	}
	flat, err := rets[1].Complex128s()
	if err != nil {
		return nil, nil, fmt.Errorf("eig vectors: %w", err)
	}
	if len(rets[1].Shape) != 2 {
		return nil, nil, fmt.Errorf("eig vectors shape %v: %w", rets[1].Shape, ErrProtocol)
	}
	return vals, mat.NewCDense(rets[1].Shape[0], rets[1].Shape[1], flat), nil
}

// ArgSort returns the indices that sort values ascending.
func (b *Bridge) ArgSort(values []float64) ([]int, error) {
	rets, err := b.callN(Request{Module: ModuleNumpy, Function: "argsort", Operands: []Operand{VectorOperand(values)}}, 1)
	if err != nil {
		return nil, err
	}
	idx, err := rets[0].Ints()
	if err != nil {
		return nil, fmt.Errorf("argsort: %w", err)
	}
	if len(idx) != len(values) {
		return nil, fmt.Errorf("argsort returned %d indices for %d values: %w", len(idx), len(values), ErrProtocol)
	}
	return idx, nil
}

// RandomNormal draws size samples from N(loc, scale^2).
func (b *Bridge) RandomNormal(loc, scale float64, size int) ([]float64, error) {
	req := Request{Module: ModuleRandom, Function: "normal"}
	req.Kwarg("loc", loc)
	req.Kwarg("scale", scale)
	req.Kwarg("size", size)
	rets, err := b.callN(req, 1)
	if err != nil {
		return nil, err
	}
	return rets[0].Float64s()
}
