package audioout

import (
	"testing"
	"time"

	"github.com/cwbudde/algo-modal/rtaudio"
)

func TestParseBackend(t *testing.T) {
	cases := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"oto", BackendOto, false},
		{" BEEP ", BackendBeep, false},
		{"null", BackendNull, false},
		{"alsa", "", true},
	}
	for _, tc := range cases {
		got, err := ParseBackend(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseBackend(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestNullSinkDrainsMixer(t *testing.T) {
	m := rtaudio.NewMixer(rtaudio.DefaultConfig(8000))
	sink, err := Open(Config{Backend: BackendNull}, m)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	m.Play(func(yield func([]float32) bool) {
		chunk := make([]float32, 128)
		for i := 0; i < 4; i++ {
			if !yield(chunk) {
				return
			}
		}
	})
	deadline := time.Now().Add(5 * time.Second)
	for m.Stats().Finished != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("null sink did not drain the sound: %+v", m.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	m := rtaudio.NewMixer(rtaudio.DefaultConfig(8000))
	if _, err := Open(Config{Backend: "jack"}, m); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
