package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 0.5, 0.1)
	m := Compare(x, x, sr)
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 0.5, 0.2)
	b := makeDecaySine(sr, 330.0, 0.5, 0.03)
	m := Compare(a, b, sr)
	if m.Score < 0.25 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
	if m.PeakDiffCents < 300 {
		t.Fatalf("peak difference = %.1f cents, want ~400", m.PeakDiffCents)
	}
}

func TestCompareEmptyInput(t *testing.T) {
	if m := Compare(nil, []float64{1}, 48000); m.Score != 1 || m.Similarity != 0 {
		t.Fatalf("empty reference: score %g similarity %g", m.Score, m.Similarity)
	}
}

func TestEstimateLagFindsShift(t *testing.T) {
	const (
		n      = 4096
		maxLag = 600
	)
	for _, shift := range []int{237, -191} {
		ref := randomSignal(n, 7)
		cand := make([]float64, n)
		if shift >= 0 {
			copy(cand, ref[shift:])
		} else {
			copy(cand[-shift:], ref)
		}
		if got := estimateLag(ref, cand, maxLag); got != shift {
			t.Fatalf("estimateLag() = %d, want %d", got, shift)
		}
	}
}

func TestPeakFrequencyOfSine(t *testing.T) {
	sr := 44100
	for _, f := range []float64{220, 1000, 5123} {
		x := makeDecaySine(sr, f, 0.25, 1)
		got, err := PeakFrequency(x, sr)
		if err != nil {
			t.Fatalf("PeakFrequency: %v", err)
		}
		binHz := float64(sr) / float64(FrameSize(len(x)))
		if math.Abs(got-f) > binHz/2 {
			t.Fatalf("peak %g Hz, want %g (bin %g Hz)", got, f, binHz)
		}
	}
}

func TestPeaksStrongestFirst(t *testing.T) {
	sr := 44100
	n := sr / 4
	x := make([]float64, n)
	for i := range x {
		tt := float64(i) / float64(sr)
		x[i] = 0.3*math.Sin(2*math.Pi*500*tt) + math.Sin(2*math.Pi*3000*tt)
	}
	peaks, err := Peaks(x, sr, 2)
	if err != nil {
		t.Fatalf("Peaks: %v", err)
	}
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2", len(peaks))
	}
	if math.Abs(peaks[0].Freq-3000) > 5 || math.Abs(peaks[1].Freq-500) > 5 {
		t.Fatalf("peaks = %+v, want 3000 then 500 Hz", peaks)
	}
}

func TestDecayRateMatchesEnvelope(t *testing.T) {
	sr := 48000
	const tau = 0.05
	x := makeDecaySine(sr, 800, 0.5, tau)
	want := -20 / (tau * math.Ln10)
	got := DecayRate(x, sr)
	if math.Abs(got-want) > 0.1*math.Abs(want) {
		t.Fatalf("DecayRate = %g dB/s, want %g", got, want)
	}
}

func TestSpectrumRejectsOddSize(t *testing.T) {
	if _, err := Spectrum([]float64{1, 2, 3}, 300); err == nil {
		t.Fatalf("expected error for non power-of-two size")
	}
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
