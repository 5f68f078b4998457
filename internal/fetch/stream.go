package fetch

import (
	"context"

	"voxport/internal/dataset"
	"voxport/internal/logging"
)

// Result pairs a record with its fetched audio or the terminal fetch error.
type Result struct {
	Record dataset.AudioRecord
	Data   []byte
	Err    error
}

// Stream fans record fetches out across the configured concurrency budget
// while delivering results strictly in input order. A record whose retries
// are exhausted is delivered with Err set so the consumer can skip it.
// The returned channel closes once the input channel closes and every
// in-flight fetch has been delivered, or when ctx is cancelled.
func (f *Fetcher) Stream(ctx context.Context, records <-chan dataset.AudioRecord) <-chan Result {
	// Each pending fetch gets a single-slot future channel; the dispatcher
	// emits futures in input order and the collector drains them in the
	// same order, so completion order never reorders output.
	futures := make(chan chan Result, f.concurrency)
	out := make(chan Result)

	go func() {
		defer close(futures)
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-records:
				if !ok {
					return
				}
				if err := f.sem.Acquire(ctx, 1); err != nil {
					return
				}
				future := make(chan Result, 1)
				go func(record dataset.AudioRecord) {
					defer f.sem.Release(1)
					data, err := f.Fetch(ctx, record)
					if err != nil {
						f.logger.Warn("audio fetch failed, skipping record",
							logging.String(logging.FieldRecordID, record.ID),
							logging.Error(err))
					}
					future <- Result{Record: record, Data: data, Err: err}
				}(record)
				select {
				case futures <- future:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for future := range futures {
			select {
			case result := <-future:
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
