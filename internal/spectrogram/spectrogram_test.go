package spectrogram

import (
	"errors"
	"math"
	"testing"

	"github.com/himanishpuri/audiofp/internal/audio"
	"github.com/himanishpuri/audiofp/internal/fperrors"
)

func TestComputeRejectsShortInput(t *testing.T) {
	_, err := Compute(make([]float32, WindowSize-1))
	if !errors.Is(err, fperrors.ErrInputTooShort) {
		t.Fatalf("expected ErrInputTooShort, got %v", err)
	}
}

func TestComputeFrameCount(t *testing.T) {
	samples := audio.Sine(440, 0.5, 1.0)
	m, err := Compute(samples)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := (len(samples)-WindowSize)/HopSize + 1
	if m.Frames != want {
		t.Fatalf("Frames = %d, want %d", m.Frames, want)
	}
	if m.Bins != Bins {
		t.Fatalf("Bins = %d, want %d", m.Bins, Bins)
	}
}

func TestComputePeaksNearInputFrequency(t *testing.T) {
	const freq = 1000.0
	samples := audio.Sine(freq, 1.0, 1.0)
	m, err := Compute(samples)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	t0 := m.Frames / 2
	bestF, bestMag := 0, 0.0
	for f := 0; f < m.Bins; f++ {
		if v := m.At(t0, f); v > bestMag {
			bestMag, bestF = v, f
		}
	}

	gotFreq := m.FreqHz(bestF)
	if math.Abs(gotFreq-freq) > (SampleRate / float64(WindowSize) * 4) {
		t.Fatalf("dominant bin frequency = %.1fHz, want near %.1fHz", gotFreq, freq)
	}
}

func TestFreqHzFormula(t *testing.T) {
	m := &Matrix{SR: SampleRate, Bins: Bins}
	got := m.FreqHz(100)
	want := 100.0 * SampleRate / (2 * float64(Bins-1))
	if got != want {
		t.Fatalf("FreqHz(100) = %v, want %v", got, want)
	}
}

func TestTimeSecondsFormula(t *testing.T) {
	m := &Matrix{SR: SampleRate, HopSize: HopSize}
	got := m.TimeSeconds(10)
	want := float64(10*HopSize) / float64(SampleRate)
	if got != want {
		t.Fatalf("TimeSeconds(10) = %v, want %v", got, want)
	}
}

func TestHannWindowEndpoints(t *testing.T) {
	w := Hann(WindowSize)
	if w[0] != 0 {
		t.Fatalf("Hann[0] = %v, want 0", w[0])
	}
	if math.Abs(w[len(w)-1]) > 1e-9 {
		t.Fatalf("Hann[last] = %v, want ~0", w[len(w)-1])
	}
}

func TestComputeDeterministic(t *testing.T) {
	samples := audio.Sine(880, 0.8, 0.5)
	a, err := Compute(samples)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(samples)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Compute is not deterministic at index %d: %v != %v", i, a.Data[i], b.Data[i])
		}
	}
}
