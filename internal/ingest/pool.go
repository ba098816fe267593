package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default bounded concurrency across ingestions.
const DefaultConcurrency = 2

// Job is one recording to ingest.
type Job struct {
	Meta        Metadata
	AudioSource string
}

// Result is one job's outcome.
type Result struct {
	Job         Job
	RecordingID uint32
	Err         error
}

// Pool bounds concurrent Pipeline.Add calls to Concurrency, grounded on
// the bounded-semaphore fan-out idiom shown across the pack
// (paraswtf-afsispa's `sem := make(chan struct{}, N)` pattern), expressed
// here with golang.org/x/sync/errgroup's SetLimit instead of a hand-rolled
// channel semaphore, since errgroup also gives first-error propagation
// for free.
type Pool struct {
	Pipeline    *Pipeline
	Concurrency int
}

func NewPool(p *Pipeline, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pool{Pipeline: p, Concurrency: concurrency}
}

// Run ingests every job with at most Concurrency pipelines in flight at
// once. Each job's outcome lands in the returned slice at its original
// index regardless of completion order. The returned error is the first
// job error encountered (per errgroup.Group.Wait); remaining in-flight
// jobs are not force-stopped, but the shared context is cancelled, so any
// job still waiting on an I/O boundary will observe ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			id, err := p.Pipeline.Add(gctx, job.Meta, job.AudioSource)
			results[i] = Result{Job: job, RecordingID: id, Err: err}
			return err
		})
	}

	return results, g.Wait()
}
