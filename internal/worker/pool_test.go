package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"voxport/internal/jobs"
	"voxport/internal/testsupport"
	"voxport/internal/worker"
)

type recordingRunner struct {
	store *jobs.Store
	mu    sync.Mutex
	ran   []string
	done  chan string
}

func (r *recordingRunner) Run(ctx context.Context, job *jobs.Job) error {
	r.mu.Lock()
	r.ran = append(r.ran, job.ID)
	r.mu.Unlock()
	if err := r.store.SetReady(ctx, job.ID, "exports/x.zip", "https://signed.test/x", 1); err != nil {
		return err
	}
	r.done <- job.ID
	return nil
}

func TestPoolRunsQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	ctx := context.Background()

	var created []string
	for i := 0; i < 3; i++ {
		job, err := jobStore.Create(ctx, jobs.Job{Language: "hausa", Percentage: 10})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		created = append(created, job.ID)
	}

	runner := &recordingRunner{store: jobStore, done: make(chan string, 8)}
	pool := worker.NewPool(cfg, jobStore, runner, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	seen := map[string]bool{}
	timeout := time.After(10 * time.Second)
	for len(seen) < len(created) {
		select {
		case id := <-runner.done:
			if seen[id] {
				t.Fatalf("job %s ran twice", id)
			}
			seen[id] = true
		case <-timeout:
			t.Fatalf("ran %d of %d jobs", len(seen), len(created))
		}
	}

	for _, id := range created {
		job, err := jobStore.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status != jobs.StatusReady {
			t.Fatalf("job %s status = %q", id, job.Status)
		}
	}
}

func TestStartRequeuesInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	ctx := context.Background()

	job, err := jobStore.Create(ctx, jobs.Job{Language: "igbo", Percentage: 20})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := jobStore.ClaimQueued(ctx); err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	runner := &recordingRunner{store: jobStore, done: make(chan string, 1)}
	pool := worker.NewPool(cfg, jobStore, runner, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	select {
	case id := <-runner.done:
		if id != job.ID {
			t.Fatalf("ran %s, want %s", id, job.ID)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("interrupted job was not requeued and run")
	}
}
