package input

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ivugurura/sonos-mux/internal/audio"
)

// File reads an entire raw S16LE PCM file into memory once and then
// emits it as 1024-frame buffers, optionally looping indefinitely. If
// looping is disabled the producer emits the file once and returns,
// closing its side of the sink; the mixer observes the resulting
// absence of data the same way it would for any source with nothing
// fresh this round.
type File struct {
	path string
	loop bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFile constructs a file driver for the given path.
func NewFile(path string, loop bool) *File {
	return &File{path: path, loop: loop}
}

func (f *File) Clone() Driver {
	return NewFile(f.path, f.loop)
}

func (f *File) Start(ctx context.Context, sink chan<- []int16) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.done = make(chan struct{})
	f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if err != nil {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		close(f.done)
		return fmt.Errorf("input: file %s: %w", f.path, err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}

	go func() {
		defer close(f.done)
		period := time.Duration(float64(audio.BufferFrames) / audio.SampleRate * float64(time.Second))
		for {
			for off := 0; off < len(samples); off += audio.BufferSamples {
				end := off + audio.BufferSamples
				if end > len(samples) {
					end = len(samples)
				}
				chunk := make([]int16, end-off)
				copy(chunk, samples[off:end])
				select {
				case sink <- chunk:
				case <-runCtx.Done():
					return
				}
				select {
				case <-time.After(period):
				case <-runCtx.Done():
					return
				}
			}
			if !f.loop {
				close(sink)
				return
			}
		}
	}()
	return nil
}

func (f *File) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	done := f.done
	f.running = false
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
