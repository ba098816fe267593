package audio

import "math"

// Sine generates seconds of a pure tone at freqHz and the given amplitude,
// sampled at TargetSampleRate. Used across test suites to exercise the
// pipeline without needing real audio fixtures or ffmpeg.
func Sine(freqHz, amplitude float64, seconds float64) []float32 {
	n := int(seconds * TargetSampleRate)
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / TargetSampleRate
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freqHz*t))
	}
	return out
}

// Silence generates seconds of all-zero PCM at TargetSampleRate.
func Silence(seconds float64) []float32 {
	return make([]float32, int(seconds*TargetSampleRate))
}

// Noise generates seconds of deterministic pseudo-white-noise PCM at
// TargetSampleRate using a simple LCG so tests are reproducible without
// pulling in math/rand/v2 seeding ceremony.
func Noise(amplitude float64, seconds float64) []float32 {
	n := int(seconds * TargetSampleRate)
	out := make([]float32, n)
	var state uint32 = 0x2545F491
	for i := range out {
		state = state*1664525 + 1013904223
		v := float64(state)/float64(math.MaxUint32)*2 - 1
		out[i] = float32(v * amplitude)
	}
	return out
}
