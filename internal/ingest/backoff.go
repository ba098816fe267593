package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/himanishpuri/audiofp/internal/fperrors"
)

// RMax is R_MAX: the maximum number of attempts (including the first) a
// Persisting step retries fperrors.ErrStoreUnavailable before the whole
// recording is failed. No example file in the pack names a backoff helper
// for this directly, so it is hand-rolled over time.After (see
// DESIGN.md standard-library justification) rather than pulled from a
// third-party retry library.
const RMax = 3

// BaseBackoff is the first retry delay; each subsequent attempt doubles it.
const BaseBackoff = 100 * time.Millisecond

// withStoreRetry runs fn up to RMax times, doubling the delay between
// attempts, and only retries fperrors.ErrStoreUnavailable — any other
// error (including ctx cancellation) aborts immediately.
func withStoreRetry(ctx context.Context, fn func() error) error {
	var err error
	delay := BaseBackoff

	for attempt := 1; attempt <= RMax; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, fperrors.ErrStoreUnavailable) {
			return err
		}
		if attempt == RMax {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
