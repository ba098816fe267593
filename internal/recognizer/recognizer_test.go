package recognizer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/audiofp/internal/audio"
	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/ingest"
	"github.com/himanishpuri/audiofp/internal/store/badgerstore"
)

// memDecoder resolves a "source" string to a preloaded sample buffer, so
// these tests exercise the full pipeline without touching ffmpeg or disk.
type memDecoder struct {
	samples map[string][]float32
}

func (d *memDecoder) Decode(ctx context.Context, source string) ([]float32, int, int, error) {
	s, ok := d.samples[source]
	if !ok {
		return nil, 0, 0, fperrors.ErrDecodeFailed
	}
	return s, audio.TargetSampleRate, 1, nil
}

func newTestRecognizer(t *testing.T, samples map[string][]float32) *Recognizer {
	t.Helper()
	st, err := badgerstore.Open(filepath.Join(t.TempDir(), "badger"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pipeline := &ingest.Pipeline{
		Decoder: &memDecoder{samples: samples},
		Store:   st,
	}
	return New(st, pipeline, 2)
}

func TestScenarioSilenceYieldsNoFingerprints(t *testing.T) {
	r := newTestRecognizer(t, map[string][]float32{"silence": audio.Silence(10.0)})

	_, err := r.Add(context.Background(), ingest.Metadata{Title: "Silence", Artist: "N/A"}, "silence")
	if !errors.Is(err, fperrors.ErrNoFingerprints) {
		t.Fatalf("expected ErrNoFingerprints, got %v", err)
	}
}

func TestScenarioPureToneSelfIdentification(t *testing.T) {
	tone := audio.Sine(1000, 0.5, 30.0)
	r := newTestRecognizer(t, map[string][]float32{"tone": tone})

	id, err := r.Add(context.Background(), ingest.Metadata{Title: "Tone", Artist: "N/A"}, "tone")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	result, err := r.Identify(context.Background(), "tone")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.RecordingID != id {
		t.Fatalf("RecordingID = %d, want %d", result.RecordingID, id)
	}
	if result.Confidence < 0.9 {
		t.Fatalf("Confidence = %v, want >= 0.9", result.Confidence)
	}
}

func TestScenarioMidClipSelfIdentification(t *testing.T) {
	full := audio.Sine(1200, 0.6, 180.0)
	clipStart := int(60.0 * audio.TargetSampleRate)
	clipEnd := int(70.0 * audio.TargetSampleRate)
	clip := full[clipStart:clipEnd]

	r := newTestRecognizer(t, map[string][]float32{"full": full, "clip": clip})

	id, err := r.Add(context.Background(), ingest.Metadata{Title: "Long", Artist: "N/A"}, "full")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	result, err := r.Identify(context.Background(), "clip")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.RecordingID != id {
		t.Fatalf("RecordingID = %d, want %d", result.RecordingID, id)
	}
	if result.Confidence < 0.5 {
		t.Fatalf("Confidence = %v, want >= 0.5", result.Confidence)
	}
}

func TestScenarioNoiseReturnsNoMatch(t *testing.T) {
	samples := map[string][]float32{
		"noise": audio.Noise(0.5, 10.0),
	}
	for i := 0; i < 10; i++ {
		samples[toneKey(i)] = audio.Sine(float64(300+i*100), 0.5, 20.0)
	}

	r := newTestRecognizer(t, samples)
	for i := 0; i < 10; i++ {
		if _, err := r.Add(context.Background(), ingest.Metadata{Title: "Tonal", Artist: "N/A"}, toneKey(i)); err != nil {
			t.Fatalf("Add tone %d: %v", i, err)
		}
	}

	_, err := r.Identify(context.Background(), "noise")
	if !errors.Is(err, fperrors.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestScenarioCrosstalkPicksCorrectRecording(t *testing.T) {
	recA := audio.Sine(900, 0.5, 20.0)
	recB := audio.Sine(1700, 0.5, 20.0)
	clipFromA := recA[5*audio.TargetSampleRate : 15*audio.TargetSampleRate]

	r := newTestRecognizer(t, map[string][]float32{"a": recA, "b": recB, "clipA": clipFromA})

	idA, err := r.Add(context.Background(), ingest.Metadata{Title: "A", Artist: "N/A"}, "a")
	if err != nil {
		t.Fatalf("Add A: %v", err)
	}
	if _, err := r.Add(context.Background(), ingest.Metadata{Title: "B", Artist: "N/A"}, "b"); err != nil {
		t.Fatalf("Add B: %v", err)
	}

	result, err := r.Identify(context.Background(), "clipA")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.RecordingID != idA {
		t.Fatalf("expected recording A to win crosstalk, got %d", result.RecordingID)
	}
}

func TestScenarioDeletionCascade(t *testing.T) {
	tone := audio.Sine(500, 0.5, 15.0)
	r := newTestRecognizer(t, map[string][]float32{"tone": tone})

	id, err := r.Add(context.Background(), ingest.Metadata{Title: "Tone", Artist: "N/A"}, "tone")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := r.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = r.Identify(context.Background(), "tone")
	if !errors.Is(err, fperrors.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch after deletion, got %v", err)
	}
}

func toneKey(i int) string {
	return "tone-" + string(rune('a'+i))
}
