package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"testing"
	"time"

	"voxport/internal/export"
	"voxport/internal/jobs"
	"voxport/internal/testsupport"
)

func TestRunProducesReadyArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenRecords(t, cfg)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	fake := testsupport.NewFakeS3()
	ctx := context.Background()

	ids := testsupport.SeedRecords(t, records, "hausa", 20)
	for _, id := range ids {
		fake.Put(fmt.Sprintf("hausa/read/%s.wav", id), []byte("wav:"+id))
	}
	// Two of the selected records never fetch successfully.
	fake.FailGets[fmt.Sprintf("hausa/read/%s.wav", ids[2])] = 100
	fake.FailGets[fmt.Sprintf("hausa/read/%s.wav", ids[7])] = 100

	job, err := jobStore.Create(ctx, jobs.Job{Language: "hausa", Percentage: 50})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := jobStore.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	exporter := export.New(cfg, records, jobStore, testsupport.NewFakeObjectStore(fake), nil)
	if err := exporter.Run(ctx, claimed); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := jobStore.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.ErrorMessage)
	}
	if got.ProgressPct != 100 {
		t.Fatalf("progress = %d", got.ProgressPct)
	}
	if got.SampleCount != 8 {
		t.Fatalf("sample_count = %d, want 8 (10 selected, 2 unreachable)", got.SampleCount)
	}
	wantKey := fmt.Sprintf("exports/hausa_50pct_%s.zip", job.ID)
	if got.ArchiveKey != wantKey {
		t.Fatalf("archive_key = %q, want %q", got.ArchiveKey, wantKey)
	}
	if got.DownloadURL != "https://signed.test/"+wantKey {
		t.Fatalf("download_url = %q", got.DownloadURL)
	}

	data, ok := fake.Object(wantKey)
	if !ok {
		t.Fatalf("archive %s not uploaded", wantKey)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}

	var audioEntries int
	var metadataCSV []byte
	for _, file := range reader.File {
		switch {
		case strings.Contains(file.Name, "/audio/"):
			audioEntries++
		case strings.HasSuffix(file.Name, "metadata.csv"):
			rc, err := file.Open()
			if err != nil {
				t.Fatalf("open metadata: %v", err)
			}
			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(rc); err != nil {
				t.Fatalf("read metadata: %v", err)
			}
			rc.Close()
			metadataCSV = buf.Bytes()
		}
	}
	if audioEntries != 8 {
		t.Fatalf("audio entries = %d, want 8", audioEntries)
	}
	rows, err := csv.NewReader(bytes.NewReader(metadataCSV)).ReadAll()
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if len(rows) != 9 {
		t.Fatalf("metadata rows = %d, want header + 8", len(rows))
	}
	for _, id := range []string{ids[2], ids[7]} {
		if bytes.Contains(metadataCSV, []byte(id)) {
			t.Fatalf("skipped record %s should not appear in metadata", id)
		}
	}
}

func TestRunFailsWhenNothingMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenRecords(t, cfg)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	fake := testsupport.NewFakeS3()
	ctx := context.Background()

	testsupport.SeedRecords(t, records, "hausa", 5)

	job, err := jobStore.Create(ctx, jobs.Job{Language: "igbo", Percentage: 30})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := jobStore.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	exporter := export.New(cfg, records, jobStore, testsupport.NewFakeObjectStore(fake), nil)
	if err := exporter.Run(ctx, claimed); err == nil {
		t.Fatal("expected failure for empty filter")
	}

	got, err := jobStore.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %q", got.Status)
	}
	if got.ErrorMessage != export.NoSamplesMessage {
		t.Fatalf("error = %q", got.ErrorMessage)
	}
	if got.ProgressPct != 0 {
		t.Fatalf("progress = %d", got.ProgressPct)
	}
	if fake.Completed != 0 {
		t.Fatal("no archive should be uploaded")
	}
}

func TestRunFailsOnUploadError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenRecords(t, cfg)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	fake := testsupport.NewFakeS3()
	ctx := context.Background()

	// Incompressible payloads so the archive crosses the first part
	// boundary while records are still streaming.
	rnd := rand.New(rand.NewSource(1))
	payload := make([]byte, 1<<20)
	rnd.Read(payload)
	ids := testsupport.SeedRecords(t, records, "hausa", 8)
	for _, id := range ids {
		fake.Put(fmt.Sprintf("hausa/read/%s.wav", id), payload)
	}
	fake.FailParts[1] = true

	job, err := jobStore.Create(ctx, jobs.Job{Language: "hausa", Percentage: 100})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := jobStore.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	before := runtime.NumGoroutine()
	exporter := export.New(cfg, records, jobStore, testsupport.NewFakeObjectStore(fake), nil)
	if err := exporter.Run(ctx, claimed); err == nil {
		t.Fatal("expected upload failure")
	}

	got, err := jobStore.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %q", got.Status)
	}
	if !fake.Aborted {
		t.Fatal("multipart upload should be aborted")
	}
	if fake.Completed != 0 {
		t.Fatal("no archive should be completed")
	}

	// The cursor pump and fetch fan-out must wind down after the failure.
	for i := 0; runtime.NumGoroutine() > before; i++ {
		if i > 40 {
			t.Fatalf("pipeline goroutines still running: %d > %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRunFilteredExport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenRecords(t, cfg)
	jobStore := testsupport.MustOpenJobs(t, cfg)
	fake := testsupport.NewFakeS3()
	ctx := context.Background()

	ids := testsupport.SeedRecords(t, records, "yoruba", 10)
	for _, id := range ids {
		fake.Put(fmt.Sprintf("yoruba/read/%s.wav", id), []byte("wav:"+id))
	}

	// Seeded records alternate genders, so "female" halves the set.
	job, err := jobStore.Create(ctx, jobs.Job{Language: "yoruba", Percentage: 100, Gender: "female", Format: "xlsx"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := jobStore.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	exporter := export.New(cfg, records, jobStore, testsupport.NewFakeObjectStore(fake), nil)
	if err := exporter.Run(ctx, claimed); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := jobStore.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusReady {
		t.Fatalf("status = %q (%s)", got.Status, got.ErrorMessage)
	}
	if got.SampleCount != 5 {
		t.Fatalf("sample_count = %d, want 5", got.SampleCount)
	}
	if got.TotalCount != 5 {
		t.Fatalf("total_count = %d, want 5", got.TotalCount)
	}

	data, ok := fake.Object(got.ArchiveKey)
	if !ok {
		t.Fatalf("archive %s not uploaded", got.ArchiveKey)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	var hasXLSX bool
	for _, file := range reader.File {
		if strings.HasSuffix(file.Name, "metadata.xlsx") {
			hasXLSX = true
		}
	}
	if !hasXLSX {
		t.Fatal("xlsx export should include metadata.xlsx")
	}
}
