package input

import (
	"context"
	"sync"
	"time"

	"github.com/ivugurura/sonos-mux/internal/audio"
)

// HTTP is the driver for an audio URL input. It makes no connection
// to the URL: with no codec decoder wired in, it paces out silent
// S16LE 44.1kHz stereo buffers at roughly 100ms per buffer, which a
// decoder can replace without changing the Driver contract or
// anything downstream.
type HTTP struct {
	url string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHTTP constructs an HTTP driver for the given URL.
func NewHTTP(url string) *HTTP {
	return &HTTP{url: url}
}

func (h *HTTP) Clone() Driver {
	return NewHTTP(h.url)
}

func (h *HTTP) Start(ctx context.Context, sink chan<- []int16) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.done = make(chan struct{})
	h.mu.Unlock()

	go func() {
		defer close(h.done)
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

func (h *HTTP) Stop() error {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.running = false
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
