package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	algofft "github.com/cwbudde/algo-fft"
)

// Peak is one local maximum of a magnitude spectrum.
type Peak struct {
	Freq float64 `json:"freq"`
	Mag  float64 `json:"mag"`
}

// FrameSize returns the smallest power of two >= n, at least 256.
func FrameSize(n int) int {
	size := 256
	for size < n {
		size <<= 1
	}
	return size
}

// Spectrum returns the magnitude of bins 0..size/2 of the Hann-windowed
// first size samples of x (zero-padded when x is shorter). size must be a
// power of two.
func Spectrum(x []float64, size int) ([]float64, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("analysis: frame size %d is not a power of two", size)
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, fmt.Errorf("analysis: fft plan: %w", err)
	}
	n := len(x)
	if n > size {
		n = size
	}
	buf := make([]float64, size)
	copy(buf, x[:n])
	if n > 1 {
		for i := 0; i < n; i++ {
			buf[i] *= 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	}
	spec := make([]complex128, size/2+1)
	plan.Forward(spec, buf)

	mag := make([]float64, len(spec))
	for k, c := range spec {
		mag[k] = cmplx.Abs(c)
	}
	return mag, nil
}

// Peaks returns up to count spectral peaks of x, strongest first. Peak
// frequencies are refined by parabolic interpolation over the log magnitude.
func Peaks(x []float64, sampleRate int, count int) ([]Peak, error) {
	if sampleRate <= 0 || len(x) < 3 {
		return nil, fmt.Errorf("analysis: need a positive sample rate and at least 3 samples")
	}
	size := FrameSize(len(x))
	mag, err := Spectrum(x, size)
	if err != nil {
		return nil, err
	}
	binHz := float64(sampleRate) / float64(size)

	var peaks []Peak
	for k := 1; k < len(mag)-1; k++ {
		if mag[k] <= mag[k-1] || mag[k] < mag[k+1] || mag[k] <= 1e-12 {
			continue
		}
		a, b, c := math.Log(mag[k-1]+1e-300), math.Log(mag[k]), math.Log(mag[k+1]+1e-300)
		offset := 0.0
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
		peaks = append(peaks, Peak{Freq: (float64(k) + offset) * binHz, Mag: mag[k]})
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Mag > peaks[j].Mag })
	if count > 0 && len(peaks) > count {
		peaks = peaks[:count]
	}
	return peaks, nil
}

// PeakFrequency returns the frequency of the strongest spectral peak.
func PeakFrequency(x []float64, sampleRate int) (float64, error) {
	peaks, err := Peaks(x, sampleRate, 1)
	if err != nil {
		return 0, err
	}
	if len(peaks) == 0 {
		return 0, fmt.Errorf("analysis: no spectral peak")
	}
	return peaks[0].Freq, nil
}

// DecayRate returns the slope in dB/s of the RMS envelope after its peak, or
// NaN when the signal is too short to fit one.
func DecayRate(x []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return math.NaN()
	}
	return decaySlopeDBPerS(rmsEnvelope(x, envFrame, envHop), float64(envHop)/float64(sampleRate))
}
