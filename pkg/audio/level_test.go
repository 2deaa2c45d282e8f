package audio

import (
	"math"
	"testing"
)

func TestLevelDBSamples(t *testing.T) {
	t.Run("empty block returns silence floor", func(t *testing.T) {
		if got := LevelDBSamples(nil); got != SilenceFloorDB {
			t.Errorf("expected %v, got %v", SilenceFloorDB, got)
		}
	})

	t.Run("all-zero block returns silence floor", func(t *testing.T) {
		if got := LevelDBSamples(make([]float32, 1024)); got != SilenceFloorDB {
			t.Errorf("expected %v, got %v", SilenceFloorDB, got)
		}
	})

	t.Run("full-scale square wave is 0 dBFS", func(t *testing.T) {
		samples := make([]float32, 512)
		for i := range samples {
			if i%2 == 0 {
				samples[i] = 1.0
			} else {
				samples[i] = -1.0
			}
		}
		if got := LevelDBSamples(samples); math.Abs(got) > 1e-9 {
			t.Errorf("expected 0 dBFS, got %v", got)
		}
	})

	t.Run("full-scale sine is about -3 dBFS", func(t *testing.T) {
		samples := make([]float32, 4800)
		for i := range samples {
			samples[i] = float32(math.Sin(2 * math.Pi * float64(i) / 480))
		}
		got := LevelDBSamples(samples)
		// RMS of a sine is 1/sqrt(2) → 20·log10(0.7071) ≈ -3.01 dB.
		if math.Abs(got-(-3.0103)) > 0.05 {
			t.Errorf("expected ≈ -3.01 dBFS, got %v", got)
		}
	})

	t.Run("result is always finite", func(t *testing.T) {
		for _, amp := range []float32{0, 1e-20, 1e-6, 0.5, 1.0} {
			samples := []float32{amp, -amp, amp, -amp}
			got := LevelDBSamples(samples)
			if math.IsInf(got, 0) || math.IsNaN(got) {
				t.Errorf("amplitude %v produced non-finite level %v", amp, got)
			}
		}
	})
}

func TestLevelDBPCM16(t *testing.T) {
	t.Run("matches float path", func(t *testing.T) {
		samples := make([]float32, 256)
		for i := range samples {
			samples[i] = 0.25 * float32(math.Sin(float64(i)/7))
		}
		pcm := Float32ToPCM16(samples, nil)

		fromFloat := LevelDBSamples(samples)
		fromPCM := LevelDBPCM16(pcm)
		if math.Abs(fromFloat-fromPCM) > 0.01 {
			t.Errorf("float path %v and PCM path %v diverge", fromFloat, fromPCM)
		}
	})

	t.Run("empty and single byte return silence floor", func(t *testing.T) {
		if got := LevelDBPCM16(nil); got != SilenceFloorDB {
			t.Errorf("expected %v, got %v", SilenceFloorDB, got)
		}
		if got := LevelDBPCM16([]byte{0x7f}); got != SilenceFloorDB {
			t.Errorf("expected %v, got %v", SilenceFloorDB, got)
		}
	})
}

func TestPCM16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, 1.0, -1.0}
	pcm := Float32ToPCM16(samples, nil)
	back := PCM16ToFloat32(pcm, nil)
	if len(back) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(back))
	}
	for i := range samples {
		if math.Abs(float64(back[i]-samples[i])) > 1.0/32768+1e-6 {
			t.Errorf("sample %d: %v round-tripped to %v", i, samples[i], back[i])
		}
	}
}

func TestFloat32ToPCM16Clipping(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2.0, -2.0}, nil)
	hi := int16(uint16(pcm[0]) | uint16(pcm[1])<<8)
	lo := int16(uint16(pcm[2]) | uint16(pcm[3])<<8)
	if hi != 32767 {
		t.Errorf("expected positive clip to 32767, got %d", hi)
	}
	if lo != -32768 {
		t.Errorf("expected negative clip to -32768, got %d", lo)
	}
}

func TestMonoMixPCM16(t *testing.T) {
	t.Run("mono passthrough", func(t *testing.T) {
		in := []byte{1, 0, 2, 0}
		if got := MonoMixPCM16(in, 1); &got[0] != &in[0] {
			t.Error("expected mono input to be returned unchanged")
		}
	})

	t.Run("stereo average", func(t *testing.T) {
		// One frame: left = 100, right = 200 → mono 150.
		in := Float32ToPCM16([]float32{100.0 / 32767, 200.0 / 32767}, nil)
		out := MonoMixPCM16(in, 2)
		if len(out) != 2 {
			t.Fatalf("expected 1 mono frame, got %d bytes", len(out))
		}
		got := int16(uint16(out[0]) | uint16(out[1])<<8)
		if got != 150 {
			t.Errorf("expected 150, got %d", got)
		}
	})
}
