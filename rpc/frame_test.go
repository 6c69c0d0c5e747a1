package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

type zeroWriter struct{}

func (zeroWriter) Write(p []byte) (int, error) { return 0, nil }

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{{}, []byte("x"), bytes.Repeat([]byte{0xab}, 4096)}
	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %d bytes, want %d", i, len(got), len(want))
		}
	}
}

func TestFramePrefixIsLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, 0x0102)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if b := buf.Bytes(); b[0] != 0x02 || b[1] != 0x01 || b[2] != 0 || b[3] != 0 {
		t.Fatalf("prefix = % x, want 02 01 00 00", b[:4])
	}
}

func TestFrameFailures(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader(nil)); !errors.Is(err, ErrTransfer) {
		t.Fatalf("empty stream: got %v, want ErrTransfer", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{1, 0})); !errors.Is(err, ErrProtocol) {
		t.Fatalf("short prefix: got %v, want ErrProtocol", err)
	}

	short := make([]byte, 4+3)
	binary.LittleEndian.PutUint32(short, 16)
	if _, err := ReadFrame(bytes.NewReader(short)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("short payload: got %v, want ErrProtocol", err)
	}

	if _, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0})); !errors.Is(err, ErrTransfer) {
		t.Fatalf("zero-length frame: got %v, want ErrTransfer", err)
	}

	negative := []byte{0xff, 0xff, 0xff, 0xff}
	if _, err := ReadFrame(bytes.NewReader(negative)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("negative size: got %v, want ErrProtocol", err)
	}

	if err := WriteFrame(zeroWriter{}, []byte("abc")); !errors.Is(err, ErrTransfer) {
		t.Fatalf("zero-byte send: got %v, want ErrTransfer", err)
	}
}

func TestMatrixRoundTripBitExact(t *testing.T) {
	values := []float64{
		1, -0.0, math.Pi, math.SmallestNonzeroFloat64,
		math.MaxFloat64, math.Inf(-1), 1e-300, -7.25,
		math.Float64frombits(0x7ff8000000000001), 3, 4, 5,
	}
	a := mat.NewDense(3, 4, values)
	got, err := DecodeMatrix(EncodeMatrix(a), 3, 4)
	if err != nil {
		t.Fatalf("DecodeMatrix: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if math.Float64bits(got.At(i, j)) != math.Float64bits(a.At(i, j)) {
				t.Fatalf("entry (%d,%d) bits differ: %x vs %x", i, j,
					math.Float64bits(got.At(i, j)), math.Float64bits(a.At(i, j)))
			}
		}
	}
	if _, err := DecodeMatrix(EncodeMatrix(a), 4, 4); !errors.Is(err, ErrProtocol) {
		t.Fatalf("wrong dims: got %v, want ErrProtocol", err)
	}
}

func TestSplitEigenResponse(t *testing.T) {
	for n := 1; n <= 6; n++ {
		flat := make([]float64, n*n+2*n)
		for i := range flat {
			flat[i] = float64(i)
		}
		res, err := SplitEigenResponse(EncodeFloats(flat), n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if res.Vectors.At(i, j) != float64(i*n+j) {
					t.Fatalf("n=%d: vector (%d,%d) = %g", n, i, j, res.Vectors.At(i, j))
				}
			}
			if res.Real[i] != float64(n*n+i) {
				t.Fatalf("n=%d: real[%d] = %g", n, i, res.Real[i])
			}
			if res.Imag[i] != float64(n*n+n+i) {
				t.Fatalf("n=%d: imag[%d] = %g", n, i, res.Imag[i])
			}
		}
		if _, err := SplitEigenResponse(EncodeFloats(flat[:len(flat)-1]), n); !errors.Is(err, ErrProtocol) {
			t.Fatalf("n=%d: short response: got %v, want ErrProtocol", n, err)
		}
	}
}

func TestSquareDim(t *testing.T) {
	if n, err := SquareDim(make([]byte, 9*8)); err != nil || n != 3 {
		t.Fatalf("SquareDim(9 doubles) = %d, %v", n, err)
	}
	if _, err := SquareDim(make([]byte, 8*8)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("8 doubles should not be square")
	}
}

func TestKwargsRoundTrip(t *testing.T) {
	var req Request
	req.Kwarg("loc", 1.5)
	req.Kwarg("size", 7)
	req.Kwarg("full", true)
	req.Kwarg("mode", "reduced")
	if len(req.Kwargs) != 12 {
		t.Fatalf("kwargs = %v, want 4 triples", req.Kwargs)
	}
	kw, err := req.KwargMap()
	if err != nil {
		t.Fatalf("KwargMap: %v", err)
	}
	if kw["loc"] != 1.5 || kw["size"] != 7 || kw["full"] != true || kw["mode"] != "reduced" {
		t.Fatalf("decoded kwargs = %v", kw)
	}
	req.Kwargs = append(req.Kwargs, "dangling")
	if _, err := req.KwargMap(); !errors.Is(err, ErrProtocol) {
		t.Fatalf("dangling kwarg: got %v, want ErrProtocol", err)
	}
}
