// Package audio provides low-level PCM utilities shared by the capture layer,
// the silence detector, and the playback path: loudness measurement and
// sample-format conversion.
//
// The level functions run inside the real-time capture callback, so they are
// pure, allocation-free, and O(frame size).
package audio

import "math"

const (
	// SilenceFloorDB is the loudness reported for an empty or perfectly
	// silent frame. Chosen below any plausible mic reading so that the
	// detector's noise-floor calibration rejects it as a glitch.
	SilenceFloorDB = -80.0

	// rmsEpsilon keeps the log finite for true digital silence.
	rmsEpsilon = 1e-10
)

// RMS returns the root-mean-square amplitude of a block of float32 samples
// in the range [0, 1]. An empty block yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSPCM16 returns the root-mean-square amplitude of 16-bit signed
// little-endian PCM bytes, normalised to [0, 1]. Trailing odd bytes are
// ignored. An empty block yields 0.
func RMSPCM16(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(data[2*i])|uint16(data[2*i+1])<<8)) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// LevelDB converts an RMS amplitude in [0, 1] to decibels relative to full
// scale: 20·log10(max(rms, ε)). A zero or negative amplitude returns
// SilenceFloorDB rather than -Inf.
func LevelDB(rms float64) float64 {
	if rms <= 0 {
		return SilenceFloorDB
	}
	return 20 * math.Log10(math.Max(rms, rmsEpsilon))
}

// LevelDBSamples computes the dBFS loudness of a float32 sample block.
// An empty block returns SilenceFloorDB.
func LevelDBSamples(samples []float32) float64 {
	if len(samples) == 0 {
		return SilenceFloorDB
	}
	return LevelDB(RMS(samples))
}

// LevelDBPCM16 computes the dBFS loudness of 16-bit LE PCM bytes.
// An empty block returns SilenceFloorDB.
func LevelDBPCM16(data []byte) float64 {
	if len(data) < 2 {
		return SilenceFloorDB
	}
	return LevelDB(RMSPCM16(data))
}
