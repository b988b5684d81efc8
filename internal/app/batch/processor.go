// Package batch provides a generic fixed-size batch processor with bounded
// concurrency and inter-batch pacing through a golang.org/x/time/rate limiter.
package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of processing a single item.
type Result[T any] struct {
	Item  T
	Err   error
}

// Outcome aggregates a full Process call.
type Outcome[T any] struct {
	Succeeded []T
	Failed    []Result[T]
}

// Transform processes one whole batch as a unit (e.g. a single vector-store
// upsert call for many chunks). An error fails every item in that batch;
// subsequent batches still run.
type Transform[T any] func(ctx context.Context, batch []T) error

// Options configures a Process call.
type Options struct {
	BatchSize           int
	PauseBetweenBatches time.Duration
	MaxConcurrency      int
}

// Process partitions items into contiguous batches of at most
// opts.BatchSize, runs up to opts.MaxConcurrency batches concurrently
// (items within a batch run sequentially), and never fails fast: a failing
// batch is recorded and processing continues. When
// opts.PauseBetweenBatches is set, a rate limiter spaces batch starts at
// least that far apart; no extra pause follows a batch whose own run took
// longer than the interval.
func Process[T any](ctx context.Context, items []T, opts Options, transform Transform[T]) Outcome[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}

	batches := partition(items, opts.BatchSize)

	var limiter *rate.Limiter
	if opts.PauseBetweenBatches > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.PauseBetweenBatches), 1)
	}

	sem := make(chan struct{}, opts.MaxConcurrency)
	results := make([][]Result[T], len(batches))

	var wg sync.WaitGroup
	for i, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, batch []T) {
			defer wg.Done()
			defer func() { <-sem }()

			if limiter != nil {
				_ = limiter.Wait(ctx)
			}
			results[idx] = runBatch(ctx, batch, transform)
		}(i, b)
	}
	wg.Wait()

	var outcome Outcome[T]
	for _, batchResults := range results {
		for _, r := range batchResults {
			if r.Err != nil {
				outcome.Failed = append(outcome.Failed, r)
			} else {
				outcome.Succeeded = append(outcome.Succeeded, r.Item)
			}
		}
	}
	return outcome
}

// runBatch applies transform to the whole batch. A single error fails every
// item in the batch, matching "the error is attached to every item in the
// batch" in the batch-failure contract.
func runBatch[T any](ctx context.Context, batch []T, transform Transform[T]) []Result[T] {
	err := transform(ctx, batch)
	results := make([]Result[T], len(batch))
	for i, item := range batch {
		results[i] = Result[T]{Item: item, Err: err}
	}
	return results
}

func partition[T any](items []T, size int) [][]T {
	var batches [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
