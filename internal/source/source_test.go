package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivugurura/sonos-mux/internal/input"
)

func TestNextFramesReportsInactiveWhenEmpty(t *testing.T) {
	s := New(0, false, 0, input.NewSilence())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	_, ok := s.NextFrames()
	assert.False(t, ok)
	assert.False(t, s.IsActive())
}

func TestStopIsIdempotentWithoutStart(t *testing.T) {
	s := New(0, false, 0, input.NewSilence())
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}
