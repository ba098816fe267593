// Package spectrogram windows and FFTs a mono PCM stream into a magnitude
// time-frequency matrix. The frame/bin indexing formulas here are
// load-bearing: the peak picker, pair hasher, and matcher all depend on
// reproducing them bit-for-bit to stay compatible with stores built from
// the same formulas.
package spectrogram

import (
	"math"

	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/mjibson/go-dsp/fft"
)

const (
	// SampleRate is the fixed rate the decoder collaborator must deliver.
	SampleRate = 22050
	// WindowSize is the FFT window length in samples.
	WindowSize = 4096
	// HopSize is the stride between successive windows (75% overlap).
	HopSize = 1024
	// Bins is the number of magnitude bins per frame (non-redundant half).
	Bins = WindowSize / 2
)

// Hann returns a Hann window of length n: w[i] = 0.5*(1 - cos(2*pi*i/(n-1))).
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// Matrix is an arena-backed magnitude spectrogram: frame t, bin f lives at
// Data[t*Bins+f]. Keeping one contiguous buffer instead of [][]float64
// keeps the FFT hot loop and downstream peak scan cache-friendly, and
// gives the whole pass a single buffer to release on completion.
type Matrix struct {
	Data    []float64
	Frames  int
	Bins    int
	SR      int
	HopSize int
}

// At returns the magnitude at frame t, bin f.
func (m *Matrix) At(t, f int) float64 {
	return m.Data[t*m.Bins+f]
}

// TimeSeconds returns the time, in seconds, of frame t.
func (m *Matrix) TimeSeconds(t int) float64 {
	return float64(t*m.HopSize) / float64(m.SR)
}

// FreqHz returns the frequency, in Hz, of bin f. Deliberately uses
// SR/(2*(bins-1)) rather than the canonical SR/W: this is the spacing
// convention stores were built with, and changing it would silently
// desynchronize the hash space from existing persisted fingerprints.
func (m *Matrix) FreqHz(f int) float64 {
	return float64(f) * float64(m.SR) / (2 * float64(m.Bins-1))
}

// Compute runs the STFT over samples and returns the magnitude matrix.
// Frames whose window would extend past the end of samples are omitted;
// there is no zero-padding. Fails with fperrors.ErrInputTooShort when
// fewer than WindowSize samples are available.
func Compute(samples []float32) (*Matrix, error) {
	if len(samples) < WindowSize {
		return nil, fperrors.ErrInputTooShort
	}

	window := Hann(WindowSize)
	numFrames := (len(samples)-WindowSize)/HopSize + 1

	m := &Matrix{
		Data:    make([]float64, numFrames*Bins),
		Frames:  numFrames,
		Bins:    Bins,
		SR:      SampleRate,
		HopSize: HopSize,
	}

	frame := make([]float64, WindowSize)
	for t := 0; t < numFrames; t++ {
		start := t * HopSize
		for i := 0; i < WindowSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}

		spectrum := fft.FFTReal(frame)
		base := t * Bins
		for f := 0; f < Bins; f++ {
			m.Data[base+f] = cabs(spectrum[f])
		}
	}

	return m, nil
}

func cabs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
