// Package dsp holds the output-stage processing applied to the mixed signal.
package dsp

import "github.com/cwbudde/algo-approx"

// DefaultSteepness is the slope of the logistic curve at the origin scale.
const DefaultSteepness = 0.065

// Logistic is a soft limiter y = 2/(1+exp(-k*x)) - 1. It is odd, monotonic
// and maps any input into [-1, 1].
type Logistic struct {
	K float32
}

// NewLogistic returns a limiter with the default steepness.
func NewLogistic() Logistic {
	return Logistic{K: DefaultSteepness}
}

// Inputs beyond this are already saturated for any sensible K.
const saturate = 1000

// Process compresses one sample.
func (l Logistic) Process(x float32) float32 {
	switch {
	case x != x:
		return 0
	case x > saturate:
		return 1
	case x < -saturate:
		return -1
	}
	y := 2/(1+approx.FastExp(-l.K*x)) - 1
	if y > 1 {
		return 1
	}
	if y < -1 {
		return -1
	}
	return y
}

// ProcessBlock compresses buf in place.
func (l Logistic) ProcessBlock(buf []float32) {
	for i, x := range buf {
		buf[i] = l.Process(x)
	}
}
