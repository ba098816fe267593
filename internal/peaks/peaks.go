// Package peaks extracts a sparse constellation of local-maximum spectral
// peaks from a magnitude spectrogram.
package peaks

import (
	"sort"

	"github.com/himanishpuri/audiofp/internal/spectrogram"
)

const (
	// AmplitudeFloor is the minimum magnitude a spectrogram cell must clear
	// before it is even considered as a peak candidate.
	AmplitudeFloor = 15.0
	// Neighborhood is N: the local-max test spans N bins in both axes.
	Neighborhood = 20
	// MaxPeaks is P_MAX: the global cap on peaks kept per recording.
	MaxPeaks = 10000
)

// Peak is a transient spectral landmark: (frequency_hz, time_s, magnitude).
type Peak struct {
	TimeIdx int
	FreqIdx int
	TimeS   float64
	FreqHz  float64
	Mag     float64
}

// Picker extracts peaks from a spectrogram. Exists so the matcher/
// fingerprinter can be tested against alternate peak-selection policies
// without depending on one concrete algorithm.
type Picker interface {
	Pick(m *spectrogram.Matrix) []Peak
}

// StrictLocalMax picks cells that are a strict local maximum over their
// full neighborhood.
type StrictLocalMax struct{}

func NewStrictLocalMax() *StrictLocalMax { return &StrictLocalMax{} }

// Pick returns peaks ordered by time ascending, ties broken by frequency
// ascending.
func (StrictLocalMax) Pick(m *spectrogram.Matrix) []Peak {
	half := Neighborhood / 2
	var peaks []Peak

	for t := 0; t < m.Frames; t++ {
		for f := 0; f < m.Bins; f++ {
			mag := m.At(t, f)
			if mag < AmplitudeFloor {
				continue
			}
			if !isStrictLocalMax(m, t, f, mag, half) {
				continue
			}
			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: f,
				TimeS:   m.TimeSeconds(t),
				FreqHz:  m.FreqHz(f),
				Mag:     mag,
			})
		}
	}

	if len(peaks) > MaxPeaks {
		peaks = capByMagnitude(peaks, MaxPeaks)
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})

	return peaks
}

// isStrictLocalMax tests whether (t,f) is a strict local maximum over the
// closed square [t-half..t+half] x [f-half..f+half], excluding the center.
// Cells outside the matrix are treated as absent, not zero: they never
// disqualify the candidate.
func isStrictLocalMax(m *spectrogram.Matrix, t, f int, mag float64, half int) bool {
	for dt := -half; dt <= half; dt++ {
		tt := t + dt
		if tt < 0 || tt >= m.Frames {
			continue
		}
		for df := -half; df <= half; df++ {
			if dt == 0 && df == 0 {
				continue
			}
			ff := f + df
			if ff < 0 || ff >= m.Bins {
				continue
			}
			if m.At(tt, ff) >= mag {
				return false
			}
		}
	}
	return true
}

// capByMagnitude keeps the MaxPeaks peaks of greatest magnitude, breaking
// ties by earliest time then lowest frequency.
func capByMagnitude(peaks []Peak, maxPeaks int) []Peak {
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Mag != peaks[j].Mag {
			return peaks[i].Mag > peaks[j].Mag
		}
		if peaks[i].TimeIdx != peaks[j].TimeIdx {
			return peaks[i].TimeIdx < peaks[j].TimeIdx
		}
		return peaks[i].FreqIdx < peaks[j].FreqIdx
	})
	out := make([]Peak, maxPeaks)
	copy(out, peaks[:maxPeaks])
	return out
}
