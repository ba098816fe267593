package fingerprint

import (
	"testing"

	"github.com/himanishpuri/audiofp/internal/peaks"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash(1000, 1500, 1.0)
	b := Hash(1000, 1500, 1.0)
	if a != b {
		t.Fatalf("Hash not deterministic: %d != %d", a, b)
	}
}

func TestHashSensitiveToInputs(t *testing.T) {
	base := Hash(1000, 1500, 1.0)
	if h := Hash(1020, 1500, 1.0); h == base {
		t.Fatal("expected a >=10Hz anchor-frequency change to alter the hash")
	}
	if h := Hash(1000, 1520, 1.0); h == base {
		t.Fatal("expected a >=10Hz target-frequency change to alter the hash")
	}
	if h := Hash(1000, 1500, 1.02); h == base {
		t.Fatal("expected a >=0.01s delta change to alter the hash")
	}
}

func TestHashToleratesSubQuantumJitter(t *testing.T) {
	base := Hash(1000.0, 1500.0, 1.0)
	jittered := Hash(1004.0, 1503.0, 1.004)
	if base != jittered {
		t.Fatalf("expected sub-quantum jitter to be absorbed: %d != %d", base, jittered)
	}
}

func TestGenerateRespectsDeltaWindow(t *testing.T) {
	sorted := []peaks.Peak{
		{TimeIdx: 0, FreqIdx: 10, TimeS: 0.0, FreqHz: 1000},
		{TimeIdx: 1, FreqIdx: 10, TimeS: 0.2, FreqHz: 1100},  // too close: dt < DTMin
		{TimeIdx: 2, FreqIdx: 10, TimeS: 1.0, FreqHz: 1200},  // in window
		{TimeIdx: 3, FreqIdx: 10, TimeS: 4.0, FreqHz: 1300},  // too far: dt > DTMax
	}

	fps := Generate(sorted, 7)
	for _, fp := range fps {
		if fp.RecordingID != 7 {
			t.Fatalf("expected RecordingID 7, got %d", fp.RecordingID)
		}
	}

	anchor0Count := 0
	for _, fp := range fps {
		if fp.TimeOffset == 0.0 {
			anchor0Count++
		}
	}
	if anchor0Count != 1 {
		t.Fatalf("expected anchor at t=0 to pair with exactly 1 in-window target, got %d", anchor0Count)
	}
}

func TestGenerateRespectsFanOut(t *testing.T) {
	var sorted []peaks.Peak
	sorted = append(sorted, peaks.Peak{TimeIdx: 0, TimeS: 0.0, FreqHz: 1000})
	for i := 1; i <= FanOut+5; i++ {
		sorted = append(sorted, peaks.Peak{
			TimeIdx: i, TimeS: 0.5 + float64(i)*0.1, FreqHz: 1000 + float64(i)*10,
		})
	}

	fps := Generate(sorted, 0)
	anchorPairs := 0
	for _, fp := range fps {
		if fp.TimeOffset == 0.0 {
			anchorPairs++
		}
	}
	if anchorPairs != FanOut {
		t.Fatalf("expected anchor to pair with exactly FanOut=%d targets, got %d", FanOut, anchorPairs)
	}
}

func TestGenerateOrderedByAnchorTime(t *testing.T) {
	sorted := []peaks.Peak{
		{TimeIdx: 0, TimeS: 0.0, FreqHz: 1000},
		{TimeIdx: 1, TimeS: 0.6, FreqHz: 1100},
		{TimeIdx: 2, TimeS: 1.2, FreqHz: 1200},
	}
	fps := Generate(sorted, 0)
	for i := 1; i < len(fps); i++ {
		if fps[i-1].TimeOffset > fps[i].TimeOffset {
			t.Fatalf("fingerprints not in ascending anchor-time order: %+v", fps)
		}
	}
}

func TestGenerateEmptyForTooFewPeaks(t *testing.T) {
	fps := Generate([]peaks.Peak{{TimeIdx: 0, TimeS: 0.0, FreqHz: 1000}}, 0)
	if len(fps) != 0 {
		t.Fatalf("expected no fingerprints from a single peak, got %d", len(fps))
	}
}
