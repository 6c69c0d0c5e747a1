package wavio

import (
	"math"
	"path/filepath"
	"testing"
)

func sine(n, sr int, hz, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*hz*float64(i)/float64(sr)))
	}
	return out
}

func TestWriteThenReadMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tone.wav")
	in := sine(4410, 44100, 440, 0.5)
	if err := WriteMono(path, in, 44100); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	got, sr, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if sr != 44100 {
		t.Fatalf("sample rate = %d", sr)
	}
	if len(got) != len(in) {
		t.Fatalf("read %d frames, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(got[i]-float64(in[i])) > 1e-3 {
			t.Fatalf("frame %d = %g, want %g", i, got[i], in[i])
		}
	}
}

func TestStereoReadsBackAsMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "st.wav")
	in := sine(1000, 48000, 1000, 0.25)
	if err := WriteStereo(path, in, 48000); err != nil {
		t.Fatalf("WriteStereo: %v", err)
	}
	got, _, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("read %d frames, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(got[i]-float64(in[i])) > 1e-3 {
			t.Fatalf("frame %d = %g, want %g", i, got[i], in[i])
		}
	}
}

func TestResampleChangesLength(t *testing.T) {
	in := make([]float64, 4800)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 200 * float64(i) / 48000)
	}
	same, err := Resample(in, 48000, 48000)
	if err != nil || len(same) != len(in) {
		t.Fatalf("identity resample: len=%d err=%v", len(same), err)
	}
	out, err := Resample(in, 48000, 24000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if math.Abs(float64(len(out))-2400) > 400 {
		t.Fatalf("resampled length %d, want about 2400", len(out))
	}
}

func TestRejectsBadInput(t *testing.T) {
	if err := WriteMono(filepath.Join(t.TempDir(), "x.wav"), nil, 0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, _, err := ReadMono(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
