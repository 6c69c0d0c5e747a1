package audioout

import (
	"sync"
	"time"

	"github.com/cwbudde/algo-modal/rtaudio"
)

// quantum is how often the null sink pulls a block.
const quantum = 10 * time.Millisecond

type nullSink struct {
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func openNull(cfg Config, m *rtaudio.Mixer) *nullSink {
	mc := m.Config()
	frames := max(1, int(quantum.Seconds()*float64(mc.SampleRate)))
	s := &nullSink{stop: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]float32, frames*mc.Channels)
		ticker := time.NewTicker(quantum)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				m.Process(buf)
			}
		}
	}()
	return s
}

func (s *nullSink) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
