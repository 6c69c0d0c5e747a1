package rpc_test

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/cwbudde/algo-modal/numserver"
	"github.com/cwbudde/algo-modal/rpc"
	"gonum.org/v1/gonum/mat"
)

func fastRetry() rpc.Retry {
	return rpc.Retry{MaxAttempts: 3, RetryDelay: time.Millisecond}
}

func startServer(t *testing.T) (eigenAddr, bridgeAddr string) {
	t.Helper()
	srv := numserver.New(1)
	eln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	bln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeEigen(eln)
	go srv.ServeBridge(bln)
	t.Cleanup(func() { _ = srv.Close() })
	return eln.Addr().String(), bln.Addr().String()
}

func TestEigenClientAgainstServer(t *testing.T) {
	eigenAddr, _ := startServer(t)
	client := &rpc.EigenClient{Addr: eigenAddr, Retry: fastRetry()}

	a := mat.NewSymDense(3, []float64{
		2, -1, 0,
		-1, 2, -1,
		0, -1, 2,
	})
	// Two sequential requests each use a fresh connection.
	for round := 0; round < 2; round++ {
		res, err := client.Solve(context.Background(), a)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		want := []float64{2 - math.Sqrt2, 2, 2 + math.Sqrt2}
		for i := range want {
			if math.Abs(res.Real[i]-want[i]) > 1e-12 {
				t.Fatalf("eigenvalue %d = %g, want %g", i, res.Real[i], want[i])
			}
			if res.Imag[i] != 0 {
				t.Fatalf("imaginary part %d = %g, want 0", i, res.Imag[i])
			}
		}
	}
}

func TestDialFailureIsConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := &rpc.EigenClient{Addr: addr, Retry: fastRetry()}
	_, err = client.Solve(context.Background(), mat.NewSymDense(1, []float64{1}))
	if !errors.Is(err, rpc.ErrConnection) {
		t.Fatalf("got %v, want ErrConnection", err)
	}
}

func dialBridge(t *testing.T) *rpc.Bridge {
	t.Helper()
	_, bridgeAddr := startServer(t)
	b, err := rpc.DialBridge(context.Background(), bridgeAddr, fastRetry())
	if err != nil {
		t.Fatalf("DialBridge: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBridgeLinearAlgebra(t *testing.T) {
	b := dialBridge(t)

	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{1, 0, -1})
	prod, err := b.MatMul(x, y)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	if prod.At(0, 0) != -2 || prod.At(1, 0) != -2 {
		t.Fatalf("matmul = %v", mat.Formatted(prod))
	}

	sq := mat.NewDense(2, 2, []float64{4, 7, 2, 6})
	inv, err := b.Inv(sq)
	if err != nil {
		t.Fatalf("Inv: %v", err)
	}
	var id mat.Dense
	id.Mul(sq, inv)
	if math.Abs(id.At(0, 0)-1) > 1e-12 || math.Abs(id.At(0, 1)) > 1e-12 {
		t.Fatalf("A*inv(A) = %v", mat.Formatted(&id))
	}

	pinv, err := b.Pinv(x)
	if err != nil {
		t.Fatalf("Pinv: %v", err)
	}
	if r, c := pinv.Dims(); r != 3 || c != 2 {
		t.Fatalf("pinv dims = %dx%d, want 3x2", r, c)
	}
	var xpx mat.Dense
	xpx.Mul(x, pinv)
	if math.Abs(xpx.At(0, 0)-1) > 1e-10 || math.Abs(xpx.At(1, 0)) > 1e-10 {
		t.Fatalf("X*pinv(X) = %v", mat.Formatted(&xpx))
	}

	vals, vecs, err := b.Eigh(mat.NewDense(2, 2, []float64{2, 1, 1, 2}))
	if err != nil {
		t.Fatalf("Eigh: %v", err)
	}
	if math.Abs(vals[0]-1) > 1e-12 || math.Abs(vals[1]-3) > 1e-12 {
		t.Fatalf("eigh values = %v, want [1 3]", vals)
	}
	if r, c := vecs.Dims(); r != 2 || c != 2 {
		t.Fatalf("eigh vectors dims = %dx%d", r, c)
	}

	ev, _, err := b.Eig(mat.NewDense(2, 2, []float64{0, -1, 1, 0}))
	if err != nil {
		t.Fatalf("Eig: %v", err)
	}
	for _, z := range ev {
		if math.Abs(real(z)) > 1e-12 || math.Abs(math.Abs(imag(z))-1) > 1e-12 {
			t.Fatalf("rotation eigenvalues = %v, want +-i", ev)
		}
	}
}

func TestBridgeArgSortAndRandom(t *testing.T) {
	b := dialBridge(t)

	idx, err := b.ArgSort([]float64{3, 1, 2})
	if err != nil {
		t.Fatalf("ArgSort: %v", err)
	}
	if idx[0] != 1 || idx[1] != 2 || idx[2] != 0 {
		t.Fatalf("argsort = %v, want [1 2 0]", idx)
	}

	samples, err := b.RandomNormal(5, 0.5, 4000)
	if err != nil {
		t.Fatalf("RandomNormal: %v", err)
	}
	if len(samples) != 4000 {
		t.Fatalf("got %d samples, want 4000", len(samples))
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))
	if math.Abs(mean-5) > 0.05 {
		t.Fatalf("sample mean = %g, want ~5", mean)
	}
}

func TestBridgeErrmsgIsNumericFailure(t *testing.T) {
	b := dialBridge(t)

	singular := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	if _, err := b.Inv(singular); !errors.Is(err, rpc.ErrNumeric) {
		t.Fatalf("inv(singular): got %v, want ErrNumeric", err)
	}
	if _, err := b.Call(rpc.Request{Module: "numpy", Function: "fft"}); !errors.Is(err, rpc.ErrNumeric) {
		t.Fatalf("unknown function: got %v, want ErrNumeric", err)
	}
	// The connection survives a numeric failure.
	if _, err := b.ArgSort([]float64{2, 1}); err != nil {
		t.Fatalf("bridge unusable after errmsg: %v", err)
	}

	b.Close()
	if _, err := b.ArgSort([]float64{1}); !errors.Is(err, rpc.ErrConnection) {
		t.Fatalf("closed bridge: got %v, want ErrConnection", err)
	}
}
