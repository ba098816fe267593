// Package audio provides the decoder collaborator that the fingerprinting
// core depends on but does not own: it turns an audio source into a mono
// float32 PCM stream at a fixed sample rate. Real container/codec decoding
// is delegated to ffmpeg.
package audio

import (
	"context"

	"github.com/himanishpuri/audiofp/internal/fperrors"
)

// TargetSampleRate is the fixed rate the Spectrogrammer requires. Every
// Decoder implementation must resample to this rate.
const TargetSampleRate = 22050

// Decoder turns a source reference into mono float32 samples in [-1,1] at
// TargetSampleRate. Implementations fail with fperrors.ErrUnsupportedFormat,
// fperrors.ErrNoAudioStream, or fperrors.ErrDecodeFailed.
type Decoder interface {
	Decode(ctx context.Context, source string) (samples []float32, sampleRate int, channels int, err error)
}

// Validate checks the (sampleRate, channels) contract the Spectrogrammer
// depends on. Decoders should call this after producing samples.
func Validate(sampleRate, channels int) error {
	if channels != 1 {
		return fperrors.ErrUnsupportedFormat
	}
	if sampleRate != TargetSampleRate {
		return fperrors.ErrUnsupportedFormat
	}
	return nil
}
