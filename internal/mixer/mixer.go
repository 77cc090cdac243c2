// Package mixer combines the sources routed to one output into a
// single S16LE stereo stream, applying per-source gain and binary
// ducking: whenever any priority source is active, every non-priority
// source is attenuated by the largest duck amount among the active
// priority sources.
package mixer

import (
	"context"
	"time"

	"github.com/ivugurura/sonos-mux/internal/audio"
	"github.com/ivugurura/sonos-mux/internal/source"
)

// Mixer holds the sources feeding one output.
type Mixer struct {
	Sources []*source.Source
}

// New builds a mixer over the given sources.
func New(sources []*source.Source) *Mixer {
	return &Mixer{Sources: sources}
}

// Start starts every source's driver.
func (m *Mixer) Start(ctx context.Context) error {
	for _, s := range m.Sources {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every source's driver.
func (m *Mixer) Stop() error {
	for _, s := range m.Sources {
		if err := s.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// MixNext produces the next mixed buffer, or reports false if nothing
// was ready from any source and the caller should retry. It backs off
// 10ms when a first pass over the sources turns up nothing at all,
// mirroring the pacing a real-time mixer needs to avoid busy-spinning
// while waiting on producers.
func (m *Mixer) MixNext(ctx context.Context) ([]int16, bool) {
	buffers := make([][]int16, len(m.Sources))
	ready := make([]bool, len(m.Sources))

	anyReady := false
	for i, s := range m.Sources {
		buf, ok := s.NextFrames()
		buffers[i], ready[i] = buf, ok
		if ok {
			anyReady = true
		}
	}
	if !anyReady {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, false
		}
		return nil, false
	}

	// The amount non-priority sources get ducked by is the active
	// priority source's own DuckDB, not the ducked source's. When more
	// than one priority source is active at once, the loudest demand
	// wins: the largest configured duck amount applies.
	activePriority := false
	duckAmount := 0.0
	for _, s := range m.Sources {
		if s.DuckPriority && s.IsActive() {
			activePriority = true
			if s.DuckDB > duckAmount {
				duckAmount = s.DuckDB
			}
		}
	}

	maxLen := 0
	for i := range m.Sources {
		if ready[i] && len(buffers[i]) > maxLen {
			maxLen = len(buffers[i])
		}
	}

	var mix []float64
	for i, s := range m.Sources {
		if !ready[i] {
			continue
		}
		buf := buffers[i]

		appliedDB := s.GainDB
		if activePriority && !s.DuckPriority {
			appliedDB -= duckAmount
		}
		gain := audio.DBToLinear(appliedDB)

		if mix == nil {
			mix = make([]float64, maxLen)
		}
		for j, sample := range buf {
			mix[j] += float64(sample) * gain
		}
	}

	if mix == nil {
		return nil, false
	}

	out := make([]int16, len(mix))
	for i, v := range mix {
		out[i] = audio.ClampSample(v)
	}
	return out, true
}
