package rpc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Element types carried by an Operand.
const (
	DtypeFloat64    = "float64"
	DtypeInt64      = "int64"
	DtypeComplex128 = "complex128"
)

// Bridge module names understood by the worker.
const (
	ModuleNumpy  = "numpy"
	ModuleLinalg = "numpy.linalg"
	ModuleRandom = "numpy.random"
)

// Operand is one array in a bridge request or reply. Data holds the raw
// little-endian elements and travels base64-encoded in JSON.
type Operand struct {
	Shape  []int  `json:"shape"`
	Dtype  string `json:"dtype"`
	Data   []byte `json:"data"`
	Errmsg string `json:"errmsg,omitempty"`
}

// Request is a bridge call. Kwargs is a flat list of (name, value, type)
// triples.
type Request struct {
	Module   string    `json:"module"`
	Function string    `json:"function"`
	Operands []Operand `json:"operands"`
	Kwargs   []string  `json:"kwargs"`
}

// Response is a bridge reply.
type Response struct {
	Returns []Operand `json:"returns"`
}

// Kwarg appends a typed keyword argument to the request.
func (r *Request) Kwarg(name string, value any) {
	switch v := value.(type) {
	case int:
		r.Kwargs = append(r.Kwargs, name, strconv.Itoa(v), "int")
	case float64:
		r.Kwargs = append(r.Kwargs, name, strconv.FormatFloat(v, 'g', -1, 64), "float")
	case bool:
		r.Kwargs = append(r.Kwargs, name, strconv.FormatBool(v), "bool")
	default:
		r.Kwargs = append(r.Kwargs, name, fmt.Sprint(v), "str")
	}
}

// KwargMap decodes the kwargs triples into typed values.
func (r *Request) KwargMap() (map[string]any, error) {
	if len(r.Kwargs)%3 != 0 {
		return nil, fmt.Errorf("kwargs length %d is not a multiple of 3: %w", len(r.Kwargs), ErrProtocol)
	}
	out := make(map[string]any, len(r.Kwargs)/3)
	for i := 0; i < len(r.Kwargs); i += 3 {
		name, raw, typ := r.Kwargs[i], r.Kwargs[i+1], r.Kwargs[i+2]
		var (
			v   any
			err error
		)
		switch typ {
		case "int":
			v, err = strconv.Atoi(raw)
		case "float":
			v, err = strconv.ParseFloat(raw, 64)
		case "bool":
			v, err = strconv.ParseBool(raw)
		case "str":
			v = raw
		default:
			err = fmt.Errorf("unknown kwarg type %q", typ)
		}
		if err != nil {
			return nil, fmt.Errorf("kwarg %s: %v: %w", name, err, ErrProtocol)
		}
		out[name] = v
	}
	return out, nil
}

// MatrixOperand packs a dense float64 matrix.
func MatrixOperand(a mat.Matrix) Operand {
	r, c := a.Dims()
	return Operand{Shape: []int{r, c}, Dtype: DtypeFloat64, Data: EncodeMatrix(a)}
}

// VectorOperand packs a float64 vector.
func VectorOperand(v []float64) Operand {
	return Operand{Shape: []int{len(v)}, Dtype: DtypeFloat64, Data: EncodeFloats(v)}
}

// IntOperand packs an int64 vector.
func IntOperand(v []int) Operand {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(int64(x)))
	}
	return Operand{Shape: []int{len(v)}, Dtype: DtypeInt64, Data: buf}
}

// ComplexOperand packs a complex128 array as interleaved (re, im) doubles.
func ComplexOperand(shape []int, v []complex128) Operand {
	flat := make([]float64, 0, 2*len(v))
	for _, z := range v {
		flat = append(flat, real(z), imag(z))
	}
	return Operand{Shape: shape, Dtype: DtypeComplex128, Data: EncodeFloats(flat)}
}

// ErrorOperand reports a failed computation.
func ErrorOperand(err error) Operand {
	return Operand{Errmsg: err.Error()}
}

func (o Operand) count() int {
	n := 1
	for _, d := range o.Shape {
		n *= d
	}
	return n
}

func (o Operand) expect(dtype string, elemSize int) error {
	if o.Dtype != dtype {
		return fmt.Errorf("operand dtype %q, want %q: %w", o.Dtype, dtype, ErrProtocol)
	}
	if len(o.Data) != o.count()*elemSize {
		return fmt.Errorf("operand shape %v does not match %d data bytes: %w", o.Shape, len(o.Data), ErrProtocol)
	}
	return nil
}

// Matrix unpacks a 2-D float64 operand.
func (o Operand) Matrix() (*mat.Dense, error) {
	if len(o.Shape) != 2 {
		return nil, fmt.Errorf("operand has shape %v, want 2-D: %w", o.Shape, ErrProtocol)
	}
	if err := o.expect(DtypeFloat64, float64Size); err != nil {
		return nil, err
	}
	return DecodeMatrix(o.Data, o.Shape[0], o.Shape[1])
}

// Float64s unpacks a float64 operand of any shape.
func (o Operand) Float64s() ([]float64, error) {
	if err := o.expect(DtypeFloat64, float64Size); err != nil {
		return nil, err
	}
	return DecodeFloats(o.Data)
}

// Ints unpacks an int64 operand.
func (o Operand) Ints() ([]int, error) {
	if err := o.expect(DtypeInt64, 8); err != nil {
		return nil, err
	}
	out := make([]int, o.count())
	for i := range out {
		out[i] = int(int64(binary.LittleEndian.Uint64(o.Data[8*i:])))
	}
	return out, nil
}

// Complex128s unpacks a complex128 operand.
func (o Operand) Complex128s() ([]complex128, error) {
	if err := o.expect(DtypeComplex128, 2*float64Size); err != nil {
		return nil, err
	}
	flat, err := DecodeFloats(o.Data)
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(flat)/2)
	for i := range out {
		out[i] = complex(flat[2*i], flat[2*i+1])
	}
	return out, nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
