// Package fingerprint pairs anchor peaks with nearby target peaks and
// hashes each pair into a stream of (hash, time_offset) records.
package fingerprint

import (
	"math"

	"github.com/himanishpuri/audiofp/internal/peaks"
)

const (
	// DTMin/DTMax bound the allowed anchor->target time gap, in seconds.
	DTMin = 0.5
	DTMax = 3.0
	// FanOut is the number of target peaks paired per anchor.
	FanOut = 3

	// freqQuantumHz and deltaQuantumS are the quantization bin widths.
	freqQuantumHz = 10.0
	deltaQuantumS = 0.01
)

// Fingerprint is a transient (hash, time_offset) record keyed to the
// anchor peak that produced it. RecordingID is filled in by the caller
// (zero for a query fingerprint set).
type Fingerprint struct {
	RecordingID uint32
	Hash        uint32
	TimeOffset  float64
}

// Hash computes a polynomial rolling hash over the quantized anchor
// frequency, target frequency, and time delta. Moving a frequency within
// its 10Hz bin or a delta within its 0.01s bin does not change the result;
// crossing a bin edge may.
func Hash(anchorFreqHz, targetFreqHz, deltaS float64) uint32 {
	q1 := quantizeFreq(anchorFreqHz)
	q2 := quantizeFreq(targetFreqHz)
	qd := quantizeDelta(deltaS)

	var h uint32
	h = h*31 + q1
	h = h*31 + q2
	h = h*31 + qd
	return h
}

func quantizeFreq(freqHz float64) uint32 {
	return uint32(math.Floor(freqHz/freqQuantumHz)) * uint32(freqQuantumHz)
}

// quantizeDelta returns floor(deltaS*100) scaled by 10, i.e. the delta
// rounded down to the nearest centisecond and expressed in the same units
// as the rolling hash's other fields.
func quantizeDelta(deltaS float64) uint32 {
	centis := uint32(math.Floor(deltaS * 100))
	return centis * 10
}

// Generate runs the anchor/target pairing and hashing pass over a
// time-sorted peak list, producing fingerprints in ascending anchor-time
// order. recordingID is stamped onto every emitted fingerprint; pass 0 for
// a query.
func Generate(sortedPeaks []peaks.Peak, recordingID uint32) []Fingerprint {
	var out []Fingerprint

	for i, anchor := range sortedPeaks {
		paired := 0
		for j := i + 1; j < len(sortedPeaks) && paired < FanOut; j++ {
			target := sortedPeaks[j]
			dt := target.TimeS - anchor.TimeS
			if dt < DTMin {
				continue
			}
			if dt > DTMax {
				break
			}

			h := Hash(anchor.FreqHz, target.FreqHz, dt)
			out = append(out, Fingerprint{
				RecordingID: recordingID,
				Hash:        h,
				TimeOffset:  anchor.TimeS,
			})
			paired++
		}
	}

	return out
}
