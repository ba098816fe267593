// Package recognizer is the top-level facade: it binds the Store, Matcher,
// and ingest.Pipeline behind the Ingest/Identify/Admin API, owns the
// queries analytics table, and applies identification's soft wall-clock
// budget.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/audiofp/internal/fingerprint"
	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/ingest"
	"github.com/himanishpuri/audiofp/internal/matcher"
	"github.com/himanishpuri/audiofp/internal/peaks"
	"github.com/himanishpuri/audiofp/internal/spectrogram"
	"github.com/himanishpuri/audiofp/internal/store"
	"github.com/himanishpuri/audiofp/pkg/fplog"
)

// IdentifyTimeout is the soft wall-clock budget for Identify.
const IdentifyTimeout = 10 * time.Second

// IdentifyResult is the outcome of a successful Identify call.
type IdentifyResult struct {
	RecordingID           uint32
	Confidence            float64
	AlignedMatches        int
	QueryFingerprintCount int
	ProcessingTimeMs      float64
}

// Stats is the admin stats snapshot.
type Stats = store.Stats

// Recognizer is the facade over Store + Matcher + ingest.Pipeline.
type Recognizer struct {
	Store   store.Store
	Matcher *matcher.Matcher
	Pool    *ingest.Pool
	Decoder interface {
		Decode(ctx context.Context, source string) (samples []float32, sampleRate int, channels int, err error)
	}
	Picker peaks.Picker
	Log    *fplog.Logger
}

// New wires a Recognizer from a Store and a ready-to-use ingest.Pipeline;
// the Pipeline's Decoder is reused for Identify's decode step so both
// paths stay format-consistent.
func New(s store.Store, pipeline *ingest.Pipeline, concurrency int) *Recognizer {
	return &Recognizer{
		Store:   s,
		Matcher: matcher.New(s),
		Pool:    ingest.NewPool(pipeline, concurrency),
		Decoder: pipeline.Decoder,
		Picker:  pipeline.Picker,
		Log:     pipeline.Log,
	}
}

func (r *Recognizer) logger() *fplog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return fplog.Get()
}

func (r *Recognizer) picker() peaks.Picker {
	if r.Picker != nil {
		return r.Picker
	}
	return peaks.NewStrictLocalMax()
}

// Add ingests one recording synchronously through the pipeline and
// returns its assigned id.
func (r *Recognizer) Add(ctx context.Context, meta ingest.Metadata, audioSource string) (uint32, error) {
	results, err := r.Pool.Run(ctx, []ingest.Job{{Meta: meta, AudioSource: audioSource}})
	if err != nil {
		return 0, err
	}
	return results[0].RecordingID, results[0].Err
}

// Identify decodes audioSource, fingerprints it as a query, and runs the
// Matcher against the Store, enforcing IdentifyTimeout. Every call is
// logged to the queries analytics table regardless of outcome; analytics
// failures are logged and swallowed, never surfaced to the caller.
func (r *Recognizer) Identify(ctx context.Context, audioSource string) (*IdentifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, IdentifyTimeout)
	defer cancel()

	start := time.Now()
	result, queryLen, duration, err := r.identify(ctx, audioSource)
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	r.logQuery(duration, result, elapsedMs)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fperrors.ErrTimeout
		}
		return nil, err
	}
	if result == nil {
		return nil, fperrors.ErrNoMatch
	}

	return &IdentifyResult{
		RecordingID:           result.RecordingID,
		Confidence:            result.Confidence,
		AlignedMatches:        result.Aligned,
		QueryFingerprintCount: queryLen,
		ProcessingTimeMs:      elapsedMs,
	}, nil
}

func (r *Recognizer) identify(ctx context.Context, audioSource string) (*matcher.Result, int, float64, error) {
	samples, sampleRate, _, err := r.Decoder.Decode(ctx, audioSource)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding query: %w", err)
	}

	duration := float64(len(samples)) / float64(sampleRate)

	matrix, err := spectrogram.Compute(samples)
	if err != nil {
		return nil, 0, duration, err
	}

	peakList := r.picker().Pick(matrix)
	queryFps := fingerprint.Generate(peakList, 0)
	if len(queryFps) == 0 {
		return nil, 0, duration, fperrors.ErrNoFingerprints
	}

	result, err := r.Matcher.Identify(ctx, queryFps)
	if err != nil {
		if errors.Is(err, fperrors.ErrNoMatch) {
			return nil, len(queryFps), duration, nil
		}
		return nil, len(queryFps), duration, err
	}

	return result, len(queryFps), duration, nil
}

func (r *Recognizer) logQuery(audioDuration float64, result *matcher.Result, processingMs float64) {
	q := store.QueryLog{AudioDuration: audioDuration, ProcessingTimeMs: processingMs}
	if result != nil {
		id := result.RecordingID
		conf := result.Confidence
		q.IdentifiedRecordingID = &id
		q.Confidence = &conf
	}
	if err := r.Store.RecordQuery(context.Background(), q); err != nil {
		r.logger().Warnf("failed to record query analytics: %v", err)
	}
}

// Delete cascades a recording's fingerprints.
func (r *Recognizer) Delete(ctx context.Context, recordingID uint32) error {
	return r.Store.DeleteRecording(ctx, recordingID)
}

// GetStats returns the admin stats() snapshot.
func (r *Recognizer) GetStats(ctx context.Context) (Stats, error) {
	return r.Store.Stats(ctx)
}

// GetRecording returns one recording's metadata.
func (r *Recognizer) GetRecording(ctx context.Context, recordingID uint32) (*store.Recording, error) {
	return r.Store.GetRecording(ctx, recordingID)
}

// ListRecordings returns every recording's metadata.
func (r *Recognizer) ListRecordings(ctx context.Context) ([]store.Recording, error) {
	return r.Store.ListRecordings(ctx)
}

func (r *Recognizer) Close() error {
	return r.Store.Close()
}
