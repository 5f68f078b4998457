// Package worker runs the export job queue: a fixed pool of goroutines
// claims queued jobs and drives them to a terminal status.
package worker
