package peaks

import (
	"math"
	"sort"

	"github.com/himanishpuri/audiofp/internal/spectrogram"
)

// AdaptiveBanded is an alternate Picker: instead of a flat amplitude floor,
// it splits each frame into log-ish frequency bands, keeps each band's
// local maximum, and accepts it only if it clears the frame's average band
// level by a few dB. It is kept alongside StrictLocalMax as a diagnostic
// picker: `fpctl --picker=adaptive` uses it to sanity-check peak density on
// recordings where a flat floor over- or under-selects because of uneven
// band energy.
type AdaptiveBanded struct {
	// MinDbAboveAvg is how far above the frame's average band-max (in dB)
	// a band's peak must sit to be accepted.
	MinDbAboveAvg float64
	// TimeNeighbour/FreqNeighbour bound the local-max confirmation window.
	TimeNeighbour, FreqNeighbour int
}

func NewAdaptiveBanded() *AdaptiveBanded {
	return &AdaptiveBanded{MinDbAboveAvg: 3.0, TimeNeighbour: 1, FreqNeighbour: 3}
}

const adaptiveEps = 1e-10

func (a AdaptiveBanded) Pick(m *spectrogram.Matrix) []Peak {
	if m.Frames == 0 || m.Bins == 0 {
		return nil
	}

	bands := buildBands(m.Bins)
	var out []Peak

	for t := 0; t < m.Frames; t++ {
		bandMaxMag := make([]float64, len(bands))
		bandMaxIdx := make([]int, len(bands))
		for bi, b := range bands {
			maxMag, maxIdx := 0.0, b[0]
			for f := b[0]; f < b[1]; f++ {
				if v := m.At(t, f); v > maxMag {
					maxMag, maxIdx = v, f
				}
			}
			bandMaxMag[bi] = maxMag
			bandMaxIdx[bi] = maxIdx
		}

		var sumDb float64
		for _, mag := range bandMaxMag {
			sumDb += 20.0 * math.Log10(mag+adaptiveEps)
		}
		avgDb := sumDb / float64(len(bandMaxMag))

		for bi, mag := range bandMaxMag {
			if mag <= 0 {
				continue
			}
			f := bandMaxIdx[bi]
			magDb := 20.0 * math.Log10(mag+adaptiveEps)
			if magDb < avgDb+a.MinDbAboveAvg {
				continue
			}
			if !a.isLocalMax(m, t, f, mag) {
				continue
			}
			out = append(out, Peak{
				TimeIdx: t,
				FreqIdx: f,
				TimeS:   m.TimeSeconds(t),
				FreqHz:  m.FreqHz(f),
				Mag:     mag,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeIdx == out[j].TimeIdx {
			return out[i].FreqIdx < out[j].FreqIdx
		}
		return out[i].TimeIdx < out[j].TimeIdx
	})
	return out
}

func (a AdaptiveBanded) isLocalMax(m *spectrogram.Matrix, t, f int, mag float64) bool {
	for dt := -a.TimeNeighbour; dt <= a.TimeNeighbour; dt++ {
		tt := t + dt
		if tt < 0 || tt >= m.Frames {
			continue
		}
		for df := -a.FreqNeighbour; df <= a.FreqNeighbour; df++ {
			if dt == 0 && df == 0 {
				continue
			}
			ff := f + df
			if ff < 0 || ff >= m.Bins {
				continue
			}
			if m.At(tt, ff) > mag {
				return false
			}
		}
	}
	return true
}

// buildBands splits [0,bins) into doubling bands starting at 10, clamped
// to bins.
func buildBands(bins int) [][2]int {
	bands := [][2]int{{0, minInt(10, bins)}}
	for start := 10; start < bins; start *= 2 {
		end := minInt(start*2, bins)
		bands = append(bands, [2]int{start, end})
		if end == bins {
			break
		}
	}
	return bands
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
