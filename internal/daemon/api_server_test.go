package daemon_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"voxport/internal/api"
	"voxport/internal/config"
	"voxport/internal/daemon"
	"voxport/internal/dataset"
	"voxport/internal/jobs"
	"voxport/internal/testsupport"
)

type testDaemon struct {
	daemon  *daemon.Daemon
	cfg     *config.Config
	records *dataset.Store
	jobs    *jobs.Store
	fake    *testsupport.FakeS3
	baseURL string
}

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) *testDaemon {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
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

	return &testDaemon{
		daemon:  d,
		cfg:     cfg,
		records: records,
		jobs:    jobStore,
		fake:    fake,
		baseURL: "http://" + d.APIAddr(),
	}
}

func (td *testDaemon) seed(t *testing.T, language string, count int) []string {
	t.Helper()
	ids := testsupport.SeedRecords(t, td.records, language, count)
	for _, id := range ids {
		td.fake.Put(fmt.Sprintf("%s/read/%s.wav", language, id), []byte("wav:"+id))
	}
	return ids
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitForTerminal(t *testing.T, td *testDaemon, id string) api.JobStatus {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		var status api.JobStatus
		if code := getJSON(t, td.baseURL+"/api/exports/"+id, &status); code != http.StatusOK {
			t.Fatalf("status code = %d", code)
		}
		if status.Status == string(jobs.StatusReady) || status.Status == string(jobs.StatusFailed) {
			return status
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state (last %q)", id, status.Status)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestSubmitAndComplete(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "hausa", 10)

	var submitted api.ExportSubmitted
	code := postJSON(t, td.baseURL+"/api/exports/hausa/50", &submitted)
	if code != http.StatusAccepted {
		t.Fatalf("submit code = %d", code)
	}
	if submitted.Status != string(jobs.StatusQueued) || submitted.JobID == "" {
		t.Fatalf("submitted = %+v", submitted)
	}

	status := waitForTerminal(t, td, submitted.JobID)
	if status.Status != string(jobs.StatusReady) {
		t.Fatalf("terminal = %q (%s)", status.Status, status.ErrorMessage)
	}
	if status.SampleCount != 5 {
		t.Fatalf("sample_count = %d, want 5", status.SampleCount)
	}
	wantKey := fmt.Sprintf("exports/hausa_50pct_%s.zip", submitted.JobID)
	if status.DownloadURL != "https://signed.test/"+wantKey {
		t.Fatalf("download_url = %q", status.DownloadURL)
	}
	if _, ok := td.fake.Object(wantKey); !ok {
		t.Fatal("archive missing from bucket")
	}
}

func TestSubmitValidation(t *testing.T) {
	td := startDaemon(t)

	if code := postJSON(t, td.baseURL+"/api/exports/swahili/50", nil); code != http.StatusBadRequest {
		t.Fatalf("unsupported language code = %d", code)
	}
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/0", nil); code != http.StatusBadRequest {
		t.Fatalf("zero percentage code = %d", code)
	}
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/150", nil); code != http.StatusBadRequest {
		t.Fatalf("out-of-range percentage code = %d", code)
	}
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/50?format=pdf", nil); code != http.StatusBadRequest {
		t.Fatalf("bad format code = %d", code)
	}
	if code := getJSON(t, td.baseURL+"/api/exports/unknown-id", nil); code != http.StatusNotFound {
		t.Fatalf("unknown job code = %d", code)
	}
}

func TestSubmitXLSXFormat(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "hausa", 4)

	var submitted api.ExportSubmitted
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/100?format=xlsx", &submitted); code != http.StatusAccepted {
		t.Fatalf("submit code = %d", code)
	}
	status := waitForTerminal(t, td, submitted.JobID)
	if status.Status != string(jobs.StatusReady) {
		t.Fatalf("terminal = %q (%s)", status.Status, status.ErrorMessage)
	}
	if status.Format != "xlsx" {
		t.Fatalf("format = %q, want xlsx", status.Format)
	}

	data, ok := td.fake.Object(fmt.Sprintf("exports/hausa_100pct_%s.zip", submitted.JobID))
	if !ok {
		t.Fatal("archive missing from bucket")
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parse zip: %v", err)
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

func TestEmptyFilterFailsJob(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "hausa", 4)

	var submitted api.ExportSubmitted
	if code := postJSON(t, td.baseURL+"/api/exports/igbo/25", &submitted); code != http.StatusAccepted {
		t.Fatalf("submit code = %d", code)
	}
	status := waitForTerminal(t, td, submitted.JobID)
	if status.Status != string(jobs.StatusFailed) {
		t.Fatalf("terminal = %q", status.Status)
	}
	if status.ErrorMessage != "no matching samples found" {
		t.Fatalf("error = %q", status.ErrorMessage)
	}
}

func TestBearerAuth(t *testing.T) {
	td := startDaemon(t, testsupport.WithAPIToken("sekrit"))

	resp, err := http.Get(td.baseURL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated code = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, td.baseURL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated code = %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}
}

func TestSyncDownload(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "yoruba", 6)

	resp, err := http.Get(td.baseURL + "/api/download/yoruba/100")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content-type = %q", got)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "yoruba_100pct_") || !strings.Contains(disposition, "_dataset.zip") {
		t.Fatalf("content-disposition = %q", disposition)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parse zip: %v", err)
	}
	var audio int
	for _, file := range reader.File {
		if strings.Contains(file.Name, "/audio/") {
			audio++
		}
	}
	if audio != 6 {
		t.Fatalf("audio entries = %d, want 6", audio)
	}
}

func TestSyncDownloadLimit(t *testing.T) {
	td := startDaemon(t, func(cfg *config.Config) {
		cfg.Export.SyncMaxRecords = 3
	})
	td.seed(t, "naija", 10)

	resp, err := http.Get(td.baseURL + "/api/download/naija/100")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", resp.StatusCode)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Error, "export job") {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestPreviewSamples(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "igbo", 20)

	var preview api.PreviewResponse
	if code := getJSON(t, td.baseURL+"/api/samples/igbo/preview?limit=5", &preview); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if len(preview.Samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(preview.Samples))
	}
	for _, sample := range preview.Samples {
		if !strings.HasPrefix(sample.AudioURL, "https://signed.test/") {
			t.Fatalf("audio_url = %q", sample.AudioURL)
		}
	}
}

func TestEstimate(t *testing.T) {
	td := startDaemon(t)
	ids := td.seed(t, "hausa", 4)

	var estimate api.EstimateResponse
	if code := getJSON(t, td.baseURL+"/api/estimate/hausa/100", &estimate); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if estimate.SampleCount != 4 {
		t.Fatalf("sample_count = %d", estimate.SampleCount)
	}
	var want int64
	for _, id := range ids {
		want += int64(len("wav:" + id))
	}
	if estimate.TotalBytes != want {
		t.Fatalf("total_bytes = %d, want %d", estimate.TotalBytes, want)
	}
}

func TestJobList(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "hausa", 4)

	var submitted api.ExportSubmitted
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/100", &submitted); code != http.StatusAccepted {
		t.Fatalf("submit code = %d", code)
	}
	waitForTerminal(t, td, submitted.JobID)

	var list api.JobListResponse
	if code := getJSON(t, td.baseURL+"/api/exports?status=ready", &list); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].JobID != submitted.JobID {
		t.Fatalf("list = %+v", list.Jobs)
	}
}

func TestLogTail(t *testing.T) {
	td := startDaemon(t)

	content := "line one\nline two\nline three\n"
	if err := os.WriteFile(td.cfg.LogFilePath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	var page api.LogTailResponse
	if code := getJSON(t, td.baseURL+"/api/logs?limit=2", &page); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if len(page.Lines) != 2 || page.Lines[0] != "line two" || page.Lines[1] != "line three" {
		t.Fatalf("lines = %#v", page.Lines)
	}
	if page.Offset != int64(len(content)) {
		t.Fatalf("offset = %d, want %d", page.Offset, len(content))
	}

	// Nothing new at the returned offset.
	var next api.LogTailResponse
	url := fmt.Sprintf("%s/api/logs?offset=%d", td.baseURL, page.Offset)
	if code := getJSON(t, url, &next); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if len(next.Lines) != 0 {
		t.Fatalf("expected no new lines, got %#v", next.Lines)
	}
}
