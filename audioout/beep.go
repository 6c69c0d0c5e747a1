package audioout

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-modal/rtaudio"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

type beepSink struct {
	once sync.Once
}

func openBeep(cfg Config, m *rtaudio.Mixer) (Sink, error) {
	sr := beep.SampleRate(m.Config().SampleRate)
	if err := speaker.Init(sr, sr.N(cfg.Latency)); err != nil {
		return nil, fmt.Errorf("audioout: beep speaker: %w", err)
	}
	speaker.Play(m)
	return &beepSink{}, nil
}

func (s *beepSink) Close() error {
	s.once.Do(func() {
		speaker.Clear()
		speaker.Close()
	})
	return nil
}
