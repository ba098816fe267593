package peaks

import (
	"testing"

	"github.com/himanishpuri/audiofp/internal/spectrogram"
)

func matrixFromGrid(bins, frames int, set func(t, f int) float64) *spectrogram.Matrix {
	m := &spectrogram.Matrix{
		Data:    make([]float64, frames*bins),
		Frames:  frames,
		Bins:    bins,
		SR:      spectrogram.SampleRate,
		HopSize: spectrogram.HopSize,
	}
	for t := 0; t < frames; t++ {
		for f := 0; f < bins; f++ {
			m.Data[t*bins+f] = set(t, f)
		}
	}
	return m
}

func TestStrictLocalMaxFindsSingleSpike(t *testing.T) {
	bins, frames := 64, 10
	m := matrixFromGrid(bins, frames, func(t, f int) float64 {
		if t == 5 && f == 30 {
			return 100.0
		}
		return 1.0
	})

	got := StrictLocalMax{}.Pick(m)
	if len(got) != 1 {
		t.Fatalf("expected 1 peak, got %d: %+v", len(got), got)
	}
	if got[0].TimeIdx != 5 || got[0].FreqIdx != 30 {
		t.Fatalf("peak at wrong location: %+v", got[0])
	}
}

func TestStrictLocalMaxRejectsBelowFloor(t *testing.T) {
	bins, frames := 64, 10
	m := matrixFromGrid(bins, frames, func(t, f int) float64 {
		if t == 5 && f == 30 {
			return AmplitudeFloor - 0.01
		}
		return 0.0
	})

	got := StrictLocalMax{}.Pick(m)
	if len(got) != 0 {
		t.Fatalf("expected no peaks below floor, got %d", len(got))
	}
}

func TestStrictLocalMaxRejectsTiedMax(t *testing.T) {
	bins, frames := 64, 10
	m := matrixFromGrid(bins, frames, func(t, f int) float64 {
		if (t == 5 && f == 30) || (t == 5 && f == 31) {
			return 100.0
		}
		return 1.0
	})

	got := StrictLocalMax{}.Pick(m)
	if len(got) != 0 {
		t.Fatalf("expected strict max to reject a tie, got %d peaks: %+v", len(got), got)
	}
}

func TestStrictLocalMaxBoundaryNotDisqualifying(t *testing.T) {
	bins, frames := 64, 1
	m := matrixFromGrid(bins, frames, func(t, f int) float64 {
		if f == 0 {
			return 100.0
		}
		return 1.0
	})

	got := StrictLocalMax{}.Pick(m)
	if len(got) != 1 || got[0].FreqIdx != 0 {
		t.Fatalf("expected boundary peak at f=0 to survive, got %+v", got)
	}
}

func TestPickOrderingTimeThenFreq(t *testing.T) {
	bins, frames := 128, 20
	m := matrixFromGrid(bins, frames, func(t, f int) float64 {
		if (t == 10 && f == 80) || (t == 2 && f == 20) || (t == 2 && f == 60) {
			return 100.0
		}
		return 1.0
	})

	got := StrictLocalMax{}.Pick(m)
	if len(got) != 3 {
		t.Fatalf("expected 3 peaks, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].TimeIdx > got[i].TimeIdx {
			t.Fatalf("peaks not sorted by time: %+v", got)
		}
		if got[i-1].TimeIdx == got[i].TimeIdx && got[i-1].FreqIdx > got[i].FreqIdx {
			t.Fatalf("peaks not sorted by freq within same time: %+v", got)
		}
	}
}

func TestCapByMagnitudeKeepsStrongest(t *testing.T) {
	peaks := []Peak{
		{TimeIdx: 0, FreqIdx: 0, Mag: 5},
		{TimeIdx: 1, FreqIdx: 0, Mag: 50},
		{TimeIdx: 2, FreqIdx: 0, Mag: 20},
	}
	out := capByMagnitude(peaks, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 peaks, got %d", len(out))
	}
	mags := map[float64]bool{out[0].Mag: true, out[1].Mag: true}
	if !mags[50] || !mags[20] {
		t.Fatalf("expected the two strongest peaks kept, got %+v", out)
	}
}
