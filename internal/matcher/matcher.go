// Package matcher implements a histogram-vote alignment scorer over a
// fingerprint store's posting lists: tally (recording, offset-bin) votes,
// pick the winning bin per candidate recording, then accept a candidate
// only if it clears both a minimum-aligned-matches and a minimum-confidence
// threshold, with a combined score to pick among multiple acceptable
// candidates.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/audiofp/internal/fingerprint"
	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/store"
)

const (
	// MinMatches is the minimum collision count for a candidate group to
	// be considered, and the minimum mode-bin count for it to be accepted.
	MinMatches = 5
	// ConfMin is the minimum acceptance confidence.
	ConfMin = 0.1
	// Tol is the temporal-alignment histogram bin width, in seconds.
	Tol = 0.1
)

// Result is a successful identification.
type Result struct {
	RecordingID uint32
	Confidence  float64
	Aligned     int
	Total       int
	// AlignmentSpreadS is a supplementary diagnostic: the standard
	// deviation, in seconds, of the deltas that fell into the winning mode
	// bin. Low spread indicates the vote concentrated tightly rather than
	// merely clearing the thresholds. Never used to accept or reject a
	// candidate.
	AlignmentSpreadS float64
}

// Matcher identifies a query fingerprint set against a Store's postings.
type Matcher struct {
	store store.Store
}

func New(s store.Store) *Matcher {
	return &Matcher{store: s}
}

// Identify runs the full probe/histogram/threshold/combined-score pipeline
// and returns the winning candidate, or fperrors.ErrNoMatch if none clears
// the acceptance thresholds.
func (m *Matcher) Identify(ctx context.Context, query []fingerprint.Fingerprint) (*Result, error) {
	if len(query) == 0 {
		return nil, fperrors.ErrNoMatch
	}

	hashToQueryTimes := make(map[uint64][]float64)
	var distinctHashes []uint64
	for _, fp := range query {
		h := uint64(fp.Hash)
		if _, ok := hashToQueryTimes[h]; !ok {
			distinctHashes = append(distinctHashes, h)
		}
		hashToQueryTimes[h] = append(hashToQueryTimes[h], fp.TimeOffset)
	}

	postings, err := m.store.Lookup(ctx, distinctHashes)
	if err != nil {
		return nil, fmt.Errorf("probing store: %w", err)
	}

	deltasByRecording := make(map[uint32][]float64)
	for _, p := range postings {
		for _, queryTime := range hashToQueryTimes[p.Hash] {
			deltasByRecording[p.RecordingID] = append(deltasByRecording[p.RecordingID], p.StoredTimeOffset-queryTime)
		}
	}

	qLen := len(query)
	var best *Result
	var bestCombined float64

	for recordingID, deltas := range deltasByRecording {
		if len(deltas) < MinMatches {
			continue
		}

		modeBin, aligned, spread := voteModeBin(deltas)
		_ = modeBin
		total := len(deltas)
		confidence := float64(aligned) / float64(total)
		if aligned < MinMatches || confidence < ConfMin {
			continue
		}

		combined := confidence * (float64(aligned) / float64(qLen))
		cand := &Result{
			RecordingID:      recordingID,
			Confidence:       confidence,
			Aligned:          aligned,
			Total:            total,
			AlignmentSpreadS: spread,
		}

		if best == nil || isBetter(combined, cand, bestCombined, best) {
			best = cand
			bestCombined = combined
		}
	}

	if best == nil {
		return nil, fperrors.ErrNoMatch
	}
	return best, nil
}

// isBetter is the tie-break rule: maximize combined score; ties broken by
// greatest aligned, then smallest recording_id.
func isBetter(combined float64, cand *Result, bestCombined float64, best *Result) bool {
	if combined != bestCombined {
		return combined > bestCombined
	}
	if cand.Aligned != best.Aligned {
		return cand.Aligned > best.Aligned
	}
	return cand.RecordingID < best.RecordingID
}

// voteModeBin buckets deltas into TOL-wide bins, returns the mode bin, its
// count (aligned), and the standard deviation of the deltas it contains
// (the AlignmentSpreadS diagnostic). Ties among equally-populated bins are
// broken by smallest bin value, making the result independent of map
// iteration order.
func voteModeBin(deltas []float64) (modeBin float64, aligned int, spread float64) {
	counts := make(map[float64]int, len(deltas))
	for _, d := range deltas {
		bin := math.Round(d/Tol) * Tol
		counts[bin]++
	}

	bins := make([]float64, 0, len(counts))
	for b := range counts {
		bins = append(bins, b)
	}
	sort.Float64s(bins)

	modeBin, bestCount := bins[0], counts[bins[0]]
	for _, b := range bins[1:] {
		if counts[b] > bestCount {
			modeBin, bestCount = b, counts[b]
		}
	}

	var inBin []float64
	for _, d := range deltas {
		if math.Round(d/Tol)*Tol == modeBin {
			inBin = append(inBin, d)
		}
	}

	spread = 0
	if len(inBin) > 1 {
		_, variance := stat.MeanVariance(inBin, nil)
		spread = math.Sqrt(variance)
	}

	return modeBin, bestCount, spread
}
