// Package input implements the four audio input drivers named in the
// configuration data model: capture (alsa), file, http, and silence.
// Every driver shares the same small contract so the mixer never has
// to know which kind of driver is feeding a source.
package input

import (
	"context"
	"fmt"

	"github.com/ivugurura/sonos-mux/config"
)

// QueueDepth is the bounded channel depth between a producer thread
// and its Source. A producer whose queue is full blocks until the
// Source drains a buffer or the producer's context is cancelled;
// buffers are not dropped, and a full queue does not stop the producer.
const QueueDepth = 10

// Driver is the capability set every input exposes. Start spawns a
// dedicated producer goroutine that pushes 1024-frame buffers into
// sink until ctx is cancelled or Stop is called; Stop signals the
// producer to terminate and waits for it to exit.
//
// Cloning a Driver must not clone an in-flight producer: Clone()
// returns a handle sharing only configuration, independently
// startable. The router relies on this when one input feeds multiple
// outputs.
type Driver interface {
	Start(ctx context.Context, sink chan<- []int16) error
	Stop() error
	Clone() Driver
}

// New constructs the driver for one configured input.
func New(in config.Input) (Driver, error) {
	switch in.Kind {
	case config.InputAlsa:
		return NewCapture(in.Device), nil
	case config.InputFile:
		return NewFile(in.Path, in.Loop), nil
	case config.InputHTTP:
		return NewHTTP(in.URL), nil
	case config.InputSilence:
		return NewSilence(), nil
	default:
		return nil, fmt.Errorf("input: unsupported kind %q", in.Kind)
	}
}
