package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGainRoundTrip(t *testing.T) {
	for _, db := range []float64{-40, -20, -10, -6, -3, 0, 3, 6, 10} {
		lin := DBToLinear(db)
		back := LinearToDB(lin)
		assert.InDeltaf(t, db, back, 0.01, "round trip for %v dB", db)
	}
}

func TestDBToLinearKnownValues(t *testing.T) {
	assert.InDelta(t, 1.0, DBToLinear(0), 0.0001)
	assert.InDelta(t, 0.5012, DBToLinear(-6), 0.0001)
	assert.InDelta(t, 0.1, DBToLinear(-20), 0.0001)
}

func TestIsSilent(t *testing.T) {
	assert.True(t, IsSilent([]int16{0, 0, 9, -9}))
	assert.False(t, IsSilent([]int16{0, 0, 10, 0}))
	assert.True(t, IsSilent(nil))
	assert.False(t, IsSilent([]int16{math.MinInt16, 0}))
}

func TestClampSample(t *testing.T) {
	assert.Equal(t, int16(math.MaxInt16), ClampSample(40000))
	assert.Equal(t, int16(math.MinInt16), ClampSample(-40000))
	assert.Equal(t, int16(100), ClampSample(100))
}

func TestRMSFullScaleSine(t *testing.T) {
	buf := make([]int16, BufferSamples)
	for i := range buf {
		t := float64(i) / 2
		buf[i] = ClampSample(math.Sin(2*math.Pi*440*t/SampleRate) * math.MaxInt16)
	}
	rms := RMS(buf)
	// full-scale sine RMS is ~-3dBFS
	assert.InDelta(t, -3.0, rms, 0.3)
}

func TestRMSSilence(t *testing.T) {
	assert.True(t, math.IsInf(RMS(make([]int16, BufferSamples)), -1))
}
