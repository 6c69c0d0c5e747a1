package audioout

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-modal/rtaudio"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; it is created on first use and
// kept for the lifetime of the program.
var (
	otoContext     *oto.Context
	otoContextOnce sync.Once
	otoContextErr  error
	otoRate        int
	otoChannels    int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
		}
		var ready chan struct{}
		otoContext, ready, otoContextErr = oto.NewContext(op)
		if otoContextErr != nil {
			return
		}
		<-ready
		otoRate, otoChannels = sampleRate, channels
	})
	if otoContextErr != nil {
		return nil, fmt.Errorf("audioout: oto context: %w", otoContextErr)
	}
	if otoRate != sampleRate || otoChannels != channels {
		return nil, fmt.Errorf("audioout: oto already running at %d Hz/%d ch, mixer wants %d Hz/%d ch",
			otoRate, otoChannels, sampleRate, channels)
	}
	return otoContext, nil
}

type otoSink struct {
	player *oto.Player
}

func openOto(cfg Config, m *rtaudio.Mixer) (Sink, error) {
	mc := m.Config()
	ctx, err := sharedOtoContext(mc.SampleRate, mc.Channels)
	if err != nil {
		return nil, err
	}
	player := ctx.NewPlayer(m)
	frames := int(cfg.Latency.Seconds() * float64(mc.SampleRate))
	player.SetBufferSize(frames * mc.Channels * 4)
	player.Play()
	return &otoSink{player: player}, nil
}

func (s *otoSink) Close() error {
	s.player.Pause()
	return s.player.Close()
}
