// Package source wraps an input driver with the per-route mixing
// parameters (gain, ducking priority, ducking amount) and the small
// bit of state the mixer needs each tick: the most recent buffer, how
// much of it is unconsumed, and whether the source is currently
// producing non-silent audio.
package source

import (
	"context"

	"github.com/ivugurura/sonos-mux/internal/audio"
	"github.com/ivugurura/sonos-mux/internal/input"
)

// Source is one input bound into a mixer with its route-specific
// mixing parameters.
type Source struct {
	GainDB       float64
	DuckPriority bool
	DuckDB       float64

	driver input.Driver
	sink   chan []int16

	buffer   []int16
	pos      int
	isActive bool
}

// New builds a Source around a driver, ready to Start.
func New(gainDB float64, duckPriority bool, duckDB float64, driver input.Driver) *Source {
	return &Source{
		GainDB:       gainDB,
		DuckPriority: duckPriority,
		DuckDB:       duckDB,
		driver:       driver,
	}
}

// Start spins up the underlying driver's producer goroutine, feeding
// a bounded channel the source drains on each mixer tick.
func (s *Source) Start(ctx context.Context) error {
	s.sink = make(chan []int16, input.QueueDepth)
	return s.driver.Start(ctx, s.sink)
}

// Stop halts the underlying driver.
func (s *Source) Stop() error {
	return s.driver.Stop()
}

// IsActive reports whether the most recently observed buffer
// contained audio above the silence threshold.
func (s *Source) IsActive() bool {
	return s.isActive
}

// NextFrames returns the unconsumed tail of the current buffer,
// pulling a fresh buffer from the driver's channel if the current one
// is exhausted. It never blocks: if nothing is queued, it reports no
// data and marks the source inactive, the same posture a source with
// its device unplugged would present.
func (s *Source) NextFrames() ([]int16, bool) {
	if s.pos >= len(s.buffer) {
		select {
		case buf := <-s.sink:
			s.buffer = buf
			s.pos = 0
		default:
			s.isActive = false
			return nil, false
		}
	}

	if s.pos < len(s.buffer) {
		slice := s.buffer[s.pos:]
		s.pos = len(s.buffer)
		s.isActive = !audio.IsSilent(slice)
		return slice, true
	}

	s.isActive = false
	return nil, false
}
