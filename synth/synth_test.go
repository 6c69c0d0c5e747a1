package synth

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-modal/analysis"
)

func pole(hz, decay float64) complex128 {
	return complex(-decay, 2*math.Pi*hz)
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func TestChunkingAndLength(t *testing.T) {
	p := DefaultParams(44100)
	g := NewGenerator([]complex128{1e-4}, []complex128{pole(440, 3)}, p)
	want := p.Length()
	if want != 22050 {
		t.Fatalf("Length = %d, want 22050", want)
	}
	total, chunks := 0, 0
	for c := range g.Chunks() {
		chunks++
		total += len(c)
		if len(c) != DefaultChunkSize && total != want {
			t.Fatalf("chunk %d has %d samples before the end", chunks, len(c))
		}
	}
	if total != want {
		t.Fatalf("rendered %d samples, want %d", total, want)
	}
	if last := want % DefaultChunkSize; last != 34 {
		t.Fatalf("last chunk = %d, want 34", last)
	}
	if _, ok := g.Next(); ok {
		t.Fatalf("generator must be single-pass")
	}
}

func TestLengthRounds(t *testing.T) {
	cases := []struct {
		sr   int
		dur  float64
		want int
	}{
		{1024, 1.5 / 1024, 2},
		{1024, 1.25 / 1024, 1},
		{48000, 0.5, 24000},
		{48000, 0, 0},
	}
	for _, tc := range cases {
		p := Params{SampleRate: tc.sr, Duration: tc.dur}
		if got := len(Render([]complex128{1}, []complex128{pole(100, 1)}, p)); got != tc.want {
			t.Fatalf("sr=%d dur=%g: %d samples, want %d", tc.sr, tc.dur, got, tc.want)
		}
	}
}

func TestFirstSamplesAreOneStepApart(t *testing.T) {
	const sr = 48000
	amps := []complex128{complex(1e-4, 2e-4), complex(-3e-5, 0)}
	poles := []complex128{pole(300, 2), pole(2500, 10)}
	out := Render(amps, poles, DefaultParams(sr))
	for n := 1; n <= 2; n++ {
		var want float64
		for i := range amps {
			want += 2 * real(amps[i]*poles[i]*cmplx.Exp(poles[i]*complex(float64(n)/sr, 0)))
		}
		if math.Abs(float64(out[n-1])-want) > 1e-6*math.Abs(want) {
			t.Fatalf("sample %d = %g, want %g (value at t=%d/sr)", n-1, out[n-1], want, n)
		}
	}
}

func TestModeFrequencyViaFFT(t *testing.T) {
	const sr = 44100
	for _, hz := range []float64{180, 1250, 7000} {
		out := Render([]complex128{complex(0, 1e-5)}, []complex128{pole(hz, 4)}, DefaultParams(sr))
		got, err := analysis.PeakFrequency(toFloat64(out), sr)
		if err != nil {
			t.Fatalf("PeakFrequency: %v", err)
		}
		if math.Abs(got-hz) > 2 {
			t.Fatalf("peak at %g Hz, want %g", got, hz)
		}
	}
}

func TestOutputDecays(t *testing.T) {
	out := toFloat64(Render([]complex128{1e-4}, []complex128{pole(600, 20)}, DefaultParams(48000)))
	head, tail := rms(out[:2000]), rms(out[len(out)-2000:])
	if !(tail < head/100) {
		t.Fatalf("tail rms %g not well below head rms %g", tail, head)
	}
}

func TestStoppingAbandonsGenerator(t *testing.T) {
	g := NewGenerator([]complex128{1e-4}, []complex128{pole(440, 1)}, DefaultParams(48000))
	n := 0
	for range g.Chunks() {
		n++
		if n == 2 {
			break
		}
	}
	if g.Remaining() != 0 {
		t.Fatalf("Remaining = %d after stop, want 0", g.Remaining())
	}
	for range g.Chunks() {
		t.Fatalf("abandoned generator yielded again")
	}
}

func TestSilentModes(t *testing.T) {
	cases := map[string]struct {
		amps  []complex128
		poles []complex128
	}{
		"zero amplitude": {[]complex128{0}, []complex128{pole(440, 1)}},
		"above nyquist":  {[]complex128{1}, []complex128{pole(30000, 1)}},
		"no modes":       {nil, nil},
	}
	for name, tc := range cases {
		out := Render(tc.amps, tc.poles, DefaultParams(44100))
		if len(out) != 22050 {
			t.Fatalf("%s: %d samples, want 22050", name, len(out))
		}
		for i, s := range out {
			if s != 0 {
				t.Fatalf("%s: sample %d = %g, want 0", name, i, s)
			}
		}
	}
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}
