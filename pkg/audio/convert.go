package audio

import "math"

// Float32ToPCM16 converts float32 samples in [-1, 1] to 16-bit signed
// little-endian PCM bytes. Samples outside the valid range are clipped.
// The dst slice is reused when it has sufficient capacity.
func Float32ToPCM16(samples []float32, dst []byte) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		// Same 32768 scale as the decode direction, rounded to nearest, so a
		// round trip loses at most half an LSB. Only +1.0 needs the clip.
		v := int32(math.Round(float64(s) * 32768))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[2*i] = byte(uint16(v))
		dst[2*i+1] = byte(uint16(v) >> 8)
	}
	return dst
}

// PCM16ToFloat32 converts 16-bit signed little-endian PCM bytes to float32
// samples in [-1, 1). Trailing odd bytes are ignored. The dst slice is
// reused when it has sufficient capacity.
func PCM16ToFloat32(data []byte, dst []float32) []float32 {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = float32(int16(uint16(data[2*i])|uint16(data[2*i+1])<<8)) / 32768.0
	}
	return dst
}

// MonoMixPCM16 downmixes interleaved 16-bit LE stereo PCM to mono by
// averaging channel pairs. Mono input is returned unchanged.
func MonoMixPCM16(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}
	frames := len(data) / 2 / channels
	out := make([]byte, frames*2)
	for f := 0; f < frames; f++ {
		var sum int32
		for c := 0; c < channels; c++ {
			idx := (f*channels + c) * 2
			sum += int32(int16(uint16(data[idx]) | uint16(data[idx+1])<<8))
		}
		v := sum / int32(channels)
		out[2*f] = byte(uint16(v))
		out[2*f+1] = byte(uint16(v) >> 8)
	}
	return out
}
