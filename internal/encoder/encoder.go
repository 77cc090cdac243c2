// Package encoder turns raw S16LE PCM into an MP3 byte stream. There
// is no pure-Go MP3 encoder in reach, so this shells out to the `lame`
// binary: one long-lived child process, PCM written to its stdin, MP3
// frames read back off its stdout.
package encoder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Encoder wraps one running `lame` process.
type Encoder struct {
	bitrate int
	bin     string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	cancel context.CancelFunc

	bytesEncoded int64

	logger *log.Logger
}

// New constructs an encoder for the given bitrate in kbps. bin is the
// path to the lame executable; pass "" to resolve it from PATH.
func New(bitrate int, bin string, logger *log.Logger) *Encoder {
	if bin == "" {
		bin = "lame"
	}
	return &Encoder{bitrate: bitrate, bin: bin, logger: logger}
}

// Start launches the lame child process. Output() becomes readable
// once Start returns successfully.
func (e *Encoder) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	args := []string{
		"-r",
		"-s", "44.1",
		"--bitwidth", "16",
		"-m", "s",
		"-b", fmt.Sprintf("%d", e.bitrate),
		"-",
		"-",
	}
	cmd := exec.CommandContext(runCtx, e.bin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("encoder: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("encoder: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("encoder: start lame: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = stdout
	if e.logger != nil {
		e.logger.Info("encoder started", "bitrate", e.bitrate, "bin", e.bin)
	}
	return nil
}

// Encode writes one buffer of interleaved stereo S16LE samples to the
// encoder's input. It blocks only as long as the child process's pipe
// buffer requires.
func (e *Encoder) Encode(pcm []int16) error {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		buf[2*i] = byte(uint16(s))
		buf[2*i+1] = byte(uint16(s) >> 8)
	}
	n, err := e.stdin.Write(buf)
	atomic.AddInt64(&e.bytesEncoded, int64(n))
	if err != nil {
		return fmt.Errorf("encoder: write: %w", err)
	}
	return nil
}

// Output returns the encoder's MP3 stdout stream. Callers typically
// run a dedicated goroutine copying from it into a fan-out streamer.
func (e *Encoder) Output() io.Reader {
	return e.stdout
}

// BytesEncoded reports the total bytes of PCM written so far. It is
// the input-side counter, not the compressed output size, matching
// the teacher's pattern of tracking throughput at the producer end.
func (e *Encoder) BytesEncoded() int64 {
	return atomic.LoadInt64(&e.bytesEncoded)
}

// Flush closes the encoder's stdin, signalling lame to drain and emit
// its final frames, and waits for the process to exit.
func (e *Encoder) Flush() error {
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	err := e.cmd.Wait()
	if e.cancel != nil {
		e.cancel()
	}
	if err != nil {
		return fmt.Errorf("encoder: lame exited: %w", err)
	}
	return nil
}
