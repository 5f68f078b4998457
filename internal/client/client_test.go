package client_test

import (
	"context"
	"fmt"
	"testing"

	"voxport/internal/api"
	"voxport/internal/client"
	"voxport/internal/daemon"
	"voxport/internal/jobs"
	"voxport/internal/testsupport"
)

func startBackend(t *testing.T) (*client.Client, *testsupport.FakeS3) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenRecords(t, cfg)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	fake := testsupport.NewFakeS3()

	d, err := daemon.New(cfg, records, jobStore, testsupport.NewFakeObjectStore(fake), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	ids := testsupport.SeedRecords(t, records, "hausa", 6)
	for _, id := range ids {
		fake.Put(fmt.Sprintf("hausa/read/%s.wav", id), []byte("wav:"+id))
	}

	c, err := client.New(d.APIAddr(), "")
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c, fake
}

func TestSubmitAndWatch(t *testing.T) {
	c, _ := startBackend(t)
	ctx := context.Background()

	submitted, err := c.Submit(ctx, "hausa", 100, client.Filters{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.Status != string(jobs.StatusQueued) {
		t.Fatalf("submitted status = %q", submitted.Status)
	}

	var seen []api.JobStatus
	last, err := c.Watch(ctx, submitted.JobID, func(status api.JobStatus) {
		seen = append(seen, status)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if last.Status != string(jobs.StatusReady) {
		t.Fatalf("last status = %q (%s)", last.Status, last.ErrorMessage)
	}
	if len(seen) == 0 {
		t.Fatal("no snapshots observed")
	}

	job, err := c.Job(ctx, submitted.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.SampleCount != 6 {
		t.Fatalf("sample_count = %d", job.SampleCount)
	}

	list, err := c.Jobs(ctx, string(jobs.StatusReady), 10)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %d jobs", len(list))
	}
}

func TestWatchUnknownJob(t *testing.T) {
	c, _ := startBackend(t)

	_, err := c.Watch(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestStatusAndEstimate(t *testing.T) {
	c, _ := startBackend(t)
	ctx := context.Background()

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}

	estimate, err := c.Estimate(ctx, "hausa", 50, client.Filters{})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if estimate.SampleCount != 3 {
		t.Fatalf("sample_count = %d, want 3", estimate.SampleCount)
	}
	if estimate.TotalBytes <= 0 {
		t.Fatalf("total_bytes = %d", estimate.TotalBytes)
	}

	preview, err := c.Preview(ctx, "hausa", 2, client.Filters{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview.Samples) != 2 {
		t.Fatalf("samples = %d", len(preview.Samples))
	}
}

func TestValidationErrorSurfaced(t *testing.T) {
	c, _ := startBackend(t)

	_, err := c.Submit(context.Background(), "swahili", 50, client.Filters{})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
