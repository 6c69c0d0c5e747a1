package rpc

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// EigenClient solves eigenproblems on the worker's eigen socket. Each Solve
// opens its own connection and closes it before returning.
type EigenClient struct {
	Addr  string
	Retry Retry
}

// NewEigenClient returns a client for addr with the default retry policy.
func NewEigenClient(addr string) *EigenClient {
	return &EigenClient{Addr: addr, Retry: DefaultRetry()}
}

// Solve sends a and returns the raw worker reply. The context only bounds
// connection establishment; once the request is sent the call waits for the
// worker's answer.
func (c *EigenClient) Solve(ctx context.Context, a mat.Matrix) (EigenResponse, error) {
	r, cols := a.Dims()
	if r != cols || r == 0 {
		return EigenResponse{}, fmt.Errorf("eigen request must be square and non-empty, got %dx%d: %w", r, cols, ErrProtocol)
	}
	conn, err := Dial(ctx, c.Addr, c.Retry)
	if err != nil {
		return EigenResponse{}, err
	}
	defer conn.Close()

	if err := WriteFrame(conn, EncodeMatrix(a)); err != nil {
		return EigenResponse{}, fmt.Errorf("eigen request: %w", err)
	}
	payload, err := ReadFrame(conn)
	if err != nil {
		return EigenResponse{}, fmt.Errorf("eigen response: %w", err)
	}
	return SplitEigenResponse(payload, r)
}
