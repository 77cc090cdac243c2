package input

import (
	"context"
	"sync"
	"time"

	"github.com/ivugurura/sonos-mux/internal/audio"
)

// Silence emits zeroed buffers paced at roughly 100ms each, filling
// space so any mixer depending on it stays responsive even with
// nothing configured to play.
type Silence struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSilence constructs a silence driver.
func NewSilence() *Silence {
	return &Silence{}
}

func (s *Silence) Clone() Driver {
	return NewSilence()
}

func (s *Silence) Start(ctx context.Context, sink chan<- []int16) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		buf := make([]int16, audio.BufferSamples)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				select {
				case sink <- buf:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (s *Silence) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
