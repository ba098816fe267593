package ingest

import (
	"context"
	"fmt"

	"github.com/himanishpuri/audiofp/internal/audio"
	"github.com/himanishpuri/audiofp/internal/fingerprint"
	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/peaks"
	"github.com/himanishpuri/audiofp/internal/spectrogram"
	"github.com/himanishpuri/audiofp/internal/store"
	"github.com/himanishpuri/audiofp/pkg/fplog"
)

// Metadata is the caller-supplied recording identity for Add.
type Metadata struct {
	Title     string
	Artist    string
	Album     *string
	SourceRef string
}

// Pipeline runs the decode -> spectrogram -> peaks -> hash -> persist
// sequence for one recording as an explicit per-step state machine, with
// rollback-by-delete on any failure at or after RegisterRecording.
type Pipeline struct {
	Decoder audio.Decoder
	Picker  peaks.Picker
	Store   store.Store
	Log     *fplog.Logger

	// OnState, if set, observes every state transition for a recording.
	// recordingID is 0 until RegisterRecording succeeds.
	OnState func(recordingID uint32, s State)
}

func (p *Pipeline) logger() *fplog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return fplog.Get()
}

func (p *Pipeline) picker() peaks.Picker {
	if p.Picker != nil {
		return p.Picker
	}
	return peaks.NewStrictLocalMax()
}

// Add runs the full ingestion pipeline for one audio source and returns
// the assigned recording id once it reaches Ready. Any failure discards
// the recording: nothing partial is left queryable.
func (p *Pipeline) Add(ctx context.Context, meta Metadata, audioSource string) (uint32, error) {
	log := p.logger()
	var recordingID uint32

	transition := func(s State) {
		log.Debugf("ingest %d: -> %s", recordingID, s)
		if p.OnState != nil {
			p.OnState(recordingID, s)
		}
	}

	transition(Decoding)
	samples, sampleRate, channels, err := p.Decoder.Decode(ctx, audioSource)
	if err != nil {
		transition(Failed)
		return 0, fmt.Errorf("decoding: %w", err)
	}
	if err := audio.Validate(sampleRate, channels); err != nil {
		transition(Failed)
		return 0, err
	}

	transition(Spectrogramming)
	matrix, err := spectrogram.Compute(samples)
	if err != nil {
		transition(Failed)
		return 0, err
	}

	transition(Peaking)
	peakList := p.picker().Pick(matrix)

	transition(Hashing)
	duration := float64(len(samples)) / float64(audio.TargetSampleRate)
	recordingID, err = p.Store.RegisterRecording(ctx, store.Recording{
		Title:           meta.Title,
		Artist:          meta.Artist,
		Album:           meta.Album,
		DurationSeconds: &duration,
		SourceRef:       meta.SourceRef,
	})
	if err != nil {
		transition(Failed)
		return 0, fmt.Errorf("registering recording: %w", err)
	}

	fps := fingerprint.Generate(peakList, recordingID)
	if len(fps) == 0 {
		if delErr := p.Store.DeleteRecording(ctx, recordingID); delErr != nil {
			log.Errorf("rollback after NoFingerprints for recording %d: %v", recordingID, delErr)
		}
		transition(Failed)
		return 0, fperrors.ErrNoFingerprints
	}

	transition(Persisting)
	storeFps := make([]store.Fingerprint, len(fps))
	for i, fp := range fps {
		storeFps[i] = store.Fingerprint{RecordingID: fp.RecordingID, Hash: uint64(fp.Hash), TimeOffset: fp.TimeOffset}
	}

	err = withStoreRetry(ctx, func() error {
		return p.Store.Ingest(ctx, recordingID, storeFps)
	})
	if err != nil {
		if delErr := p.Store.DeleteRecording(ctx, recordingID); delErr != nil {
			log.Errorf("rollback after persist failure for recording %d: %v", recordingID, delErr)
		}
		transition(Failed)
		return 0, fmt.Errorf("persisting fingerprints: %w", err)
	}

	transition(Ready)
	log.Infof("ingest %d: ready (%d fingerprints, %d peaks)", recordingID, len(storeFps), len(peakList))
	return recordingID, nil
}
