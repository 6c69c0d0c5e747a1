package rpc

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const float64Size = 8

// EncodeFloats flattens values as little-endian IEEE754 doubles.
func EncodeFloats(values []float64) []byte {
	buf := make([]byte, float64Size*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*float64Size:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloats is the inverse of EncodeFloats.
func DecodeFloats(buf []byte) ([]float64, error) {
	if len(buf)%float64Size != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a whole number of doubles: %w", len(buf), ErrProtocol)
	}
	out := make([]float64, len(buf)/float64Size)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*float64Size:]))
	}
	return out, nil
}

// EncodeMatrix flattens a in row-major order.
func EncodeMatrix(a mat.Matrix) []byte {
	r, c := a.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			values = append(values, a.At(i, j))
		}
	}
	return EncodeFloats(values)
}

// DecodeMatrix rebuilds an r x c matrix from a row-major payload.
func DecodeMatrix(buf []byte, r, c int) (*mat.Dense, error) {
	if r <= 0 || c <= 0 || len(buf) != r*c*float64Size {
		return nil, fmt.Errorf("matrix payload of %d bytes does not match %dx%d: %w", len(buf), r, c, ErrProtocol)
	}
	values, err := DecodeFloats(buf)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, values), nil
}

// SquareDim infers N from an N x N matrix payload.
func SquareDim(buf []byte) (int, error) {
	if len(buf) == 0 || len(buf)%float64Size != 0 {
		return 0, fmt.Errorf("matrix payload of %d bytes: %w", len(buf), ErrProtocol)
	}
	count := len(buf) / float64Size
	n := int(math.Round(math.Sqrt(float64(count))))
	if n*n != count {
		return 0, fmt.Errorf("%d doubles do not form a square matrix: %w", count, ErrProtocol)
	}
	return n, nil
}

// EigenResponse is the decoded reply of the eigen socket.
type EigenResponse struct {
	// Vectors holds one eigenvector per column.
	Vectors *mat.Dense
	Real    []float64
	Imag    []float64
}

// EigenResponseSize is the payload length for an N x N problem.
func EigenResponseSize(n int) int {
	return (n*n + 2*n) * float64Size
}

// EncodeEigenResponse lays out the eigenvectors (row-major) followed by the
// real and then imaginary parts of the eigenvalues.
func EncodeEigenResponse(res EigenResponse) []byte {
	n := len(res.Real)
	buf := make([]byte, 0, EigenResponseSize(n))
	buf = append(buf, EncodeMatrix(res.Vectors)...)
	buf = append(buf, EncodeFloats(res.Real)...)
	buf = append(buf, EncodeFloats(res.Imag)...)
	return buf
}

// SplitEigenResponse splits an eigen reply for a known dimension n.
func SplitEigenResponse(buf []byte, n int) (EigenResponse, error) {
	if n < 1 {
		return EigenResponse{}, fmt.Errorf("dimension %d: %w", n, ErrProtocol)
	}
	if want := EigenResponseSize(n); len(buf) != want {
		return EigenResponse{}, fmt.Errorf("eigen response has %d bytes, want %d for n=%d: %w", len(buf), want, n, ErrProtocol)
	}
	vecBytes := n * n * float64Size
	valBytes := n * float64Size
	vecs, err := DecodeMatrix(buf[:vecBytes], n, n)
	if err != nil {
		return EigenResponse{}, err
	}
	re, _ := DecodeFloats(buf[vecBytes : vecBytes+valBytes])
	im, _ := DecodeFloats(buf[vecBytes+valBytes:])
	return EigenResponse{Vectors: vecs, Real: re, Imag: im}, nil
}
