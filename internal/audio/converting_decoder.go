package audio

import (
	"context"
	"fmt"
	"os"
)

// ConvertingDecoder chains ConvertToMonoWAV (ffmpeg resample/remix) and
// WAVDecoder (PCM read) into one Decoder: convert first, then read the
// resulting WAV. Kept as its own Decoder so callers that already have a
// conforming WAV (tests, pre-converted fixtures) can use WAVDecoder
// directly and skip the ffmpeg round trip.
type ConvertingDecoder struct {
	TempDir string
	wav     *WAVDecoder
}

func NewConvertingDecoder(tempDir string) *ConvertingDecoder {
	return &ConvertingDecoder{TempDir: tempDir, wav: NewWAVDecoder()}
}

func (d *ConvertingDecoder) Decode(ctx context.Context, source string) ([]float32, int, int, error) {
	wavPath, err := ConvertToMonoWAV(ctx, source, d.TempDir, ConvertConfig{SampleRate: TargetSampleRate})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("converting %s: %w", source, err)
	}
	defer os.Remove(wavPath)

	return d.wav.Decode(ctx, wavPath)
}
