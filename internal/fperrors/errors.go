// Package fperrors defines the sentinel error kinds shared across the
// fingerprinting pipeline, the store, and the matcher.
package fperrors

import "errors"

var (
	// ErrInputTooShort is returned by the spectrogrammer when fewer than
	// one FFT window's worth of samples is available.
	ErrInputTooShort = errors.New("audiofp: input shorter than one FFT window")

	// ErrUnsupportedFormat is returned by a decoder for a container or
	// codec it does not understand.
	ErrUnsupportedFormat = errors.New("audiofp: unsupported audio format")

	// ErrNoAudioStream is returned by a decoder when the source has no
	// decodable audio stream.
	ErrNoAudioStream = errors.New("audiofp: no audio stream found")

	// ErrDecodeFailed wraps a lower-level decode failure.
	ErrDecodeFailed = errors.New("audiofp: decode failed")

	// ErrNoFingerprints is returned when a fingerprinting pass produces
	// zero hashes (silence or a degenerate input).
	ErrNoFingerprints = errors.New("audiofp: pipeline produced no fingerprints")

	// ErrStoreUnavailable marks a transient store failure; ingestion may
	// retry, identification surfaces it as a retrieval failure.
	ErrStoreUnavailable = errors.New("audiofp: store unavailable")

	// ErrTimeout is returned when identification exceeds its soft wall
	// clock budget.
	ErrTimeout = errors.New("audiofp: identification timed out")

	// ErrNoMatch is not a failure: it is the normal "no candidate passed
	// the thresholds" outcome of identification.
	ErrNoMatch = errors.New("audiofp: no match")

	// ErrRecordingNotFound is returned by admin lookups for an unknown id.
	ErrRecordingNotFound = errors.New("audiofp: recording not found")
)
