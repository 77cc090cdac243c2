package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivugurura/sonos-mux/internal/audio"
	"github.com/ivugurura/sonos-mux/internal/input"
	"github.com/ivugurura/sonos-mux/internal/source"
)

// fakeDriver lets a test push buffers directly into whatever sink
// Start is given, bypassing real I/O.
type fakeDriver struct {
	push chan<- []int16
}

func newFakeDriver() *fakeDriver { return &fakeDriver{} }

func (f *fakeDriver) Start(ctx context.Context, sink chan<- []int16) error {
	f.push = sink
	return nil
}

func (f *fakeDriver) Stop() error { return nil }

func (f *fakeDriver) Clone() input.Driver { return newFakeDriver() }

func fullScaleBuffer() []int16 {
	buf := make([]int16, audio.BufferSamples)
	for i := range buf {
		buf[i] = 32767
	}
	return buf
}

func TestMixNextAppliesGain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newFakeDriver()
	src := source.New(-6.0, false, 0, d)
	require.NoError(t, src.Start(ctx))

	m := New([]*source.Source{src})
	d.push <- fullScaleBuffer()

	out, ok := m.MixNext(ctx)
	require.True(t, ok)

	expected := audio.ClampSample(32767 * audio.DBToLinear(-6.0))
	assert.Equal(t, expected, out[0])
}

func TestMixNextDucksNonPrioritySources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priority := newFakeDriver()
	background := newFakeDriver()

	prioritySrc := source.New(0, true, 12, priority)
	backgroundSrc := source.New(0, false, 0, background)
	require.NoError(t, prioritySrc.Start(ctx))
	require.NoError(t, backgroundSrc.Start(ctx))

	m := New([]*source.Source{prioritySrc, backgroundSrc})

	// The priority buffer is half scale so the ducked sum stays below
	// the clamp; without ducking it would saturate at 32767.
	loud := make([]int16, audio.BufferSamples)
	for i := range loud {
		loud[i] = 16384
	}
	quiet := fullScaleBuffer()
	priority.push <- loud
	background.push <- quiet

	out, ok := m.MixNext(ctx)
	require.True(t, ok)

	expected := audio.ClampSample(16384*audio.DBToLinear(0) + 32767*audio.DBToLinear(-12))
	assert.Equal(t, expected, out[0])
}

func TestMixNextClampsOverload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newFakeDriver()
	b := newFakeDriver()
	srcA := source.New(0, false, 0, a)
	srcB := source.New(0, false, 0, b)
	require.NoError(t, srcA.Start(ctx))
	require.NoError(t, srcB.Start(ctx))

	m := New([]*source.Source{srcA, srcB})
	a.push <- fullScaleBuffer()
	b.push <- fullScaleBuffer()

	out, ok := m.MixNext(ctx)
	require.True(t, ok)
	assert.Equal(t, int16(32767), out[0])
}

func TestMixNextReturnsFalseWhenNoSourceReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := newFakeDriver()
	src := source.New(0, false, 0, d)
	require.NoError(t, src.Start(ctx))

	m := New([]*source.Source{src})
	_, ok := m.MixNext(ctx)
	assert.False(t, ok)
}
