// Package audio defines the common PCM frame format shared by every
// input driver, source, and mixer: S16LE stereo at 44.1kHz.
package audio

import "math"

// SampleRate is the only sample rate this daemon understands. Resampling
// is explicitly out of scope; every input is assumed to already be at
// this rate.
const SampleRate = 44100

// Channels is the interleaved channel count (stereo).
const Channels = 2

// BufferFrames is the standard number of stereo pairs per buffer emitted
// by input drivers: 1024 pairs, i.e. 2048 int16 elements.
const BufferFrames = 1024

// BufferSamples is BufferFrames expressed in interleaved sample elements.
const BufferSamples = BufferFrames * Channels

// SilenceThreshold is the amplitude below which a sample is considered
// part of silence for activity detection.
const SilenceThreshold = 10

// DBToLinear converts a decibel gain to a linear multiplier.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear multiplier back to decibels.
func LinearToDB(lin float64) float64 {
	return 20 * math.Log10(math.Abs(lin))
}

// IsSilent reports whether every sample in buf has magnitude below
// SilenceThreshold.
func IsSilent(buf []int16) bool {
	for _, s := range buf {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v >= SilenceThreshold {
			return false
		}
	}
	return true
}

// ClampSample saturates a float64 accumulator to the i16 range rather
// than wrapping on overflow.
func ClampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// RMS computes the root-mean-square level of buf in dBFS, where full
// scale (±32767) is 0dBFS. Returns math.Inf(-1) for an all-zero buffer.
func RMS(buf []int16) float64 {
	if len(buf) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range buf {
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	mean := sum / float64(len(buf))
	if mean == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(mean)
}
