package api

import (
	"fmt"
	"time"

	"voxport/internal/jobs"
)

// ExportSubmitted acknowledges a queued export job.
type ExportSubmitted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatus is the wire form of an export job.
type JobStatus struct {
	JobID        string  `json:"job_id"`
	Language     string  `json:"language"`
	Percentage   float64 `json:"percentage"`
	Format       string  `json:"format"`
	Status       string  `json:"status"`
	ProgressPct  int     `json:"progress_pct"`
	SampleCount  int     `json:"sample_count"`
	TotalCount   int     `json:"total_count"`
	DownloadURL  string  `json:"download_url,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	FinishedAt   string  `json:"finished_at,omitempty"`
}

// FromJob converts a stored job into its wire form.
func FromJob(job *jobs.Job) JobStatus {
	status := JobStatus{
		JobID:        job.ID,
		Language:     job.Language,
		Percentage:   job.Percentage,
		Format:       job.Format,
		Status:       string(job.Status),
		ProgressPct:  job.ProgressPct,
		SampleCount:  job.SampleCount,
		TotalCount:   job.TotalCount,
		DownloadURL:  job.DownloadURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
	if !job.FinishedAt.IsZero() {
		status.FinishedAt = formatTime(job.FinishedAt)
	}
	return status
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// SampleView is a catalogue record as exposed by the preview endpoint.
type SampleView struct {
	ID         string  `json:"id"`
	Language   string  `json:"language"`
	Category   string  `json:"category"`
	SpeakerID  string  `json:"speaker_id"`
	Transcript string  `json:"transcript"`
	Duration   float64 `json:"duration"`
	Gender     string  `json:"gender"`
	AgeGroup   string  `json:"age_group"`
	Education  string  `json:"education"`
	SNR        float64 `json:"snr"`
	Domain     string  `json:"domain"`
	AudioURL   string  `json:"audio_url,omitempty"`
}

// PreviewResponse wraps a preview sample page.
type PreviewResponse struct {
	Language string       `json:"language"`
	Samples  []SampleView `json:"samples"`
}

// EstimateResponse reports the projected size of an export.
type EstimateResponse struct {
	Language    string  `json:"language"`
	Percentage  float64 `json:"percentage"`
	SampleCount int     `json:"sample_count"`
	TotalBytes  int64   `json:"total_bytes"`
	HumanSize   string  `json:"human_size"`
}

// DaemonStatus reports daemon liveness and queue depth.
type DaemonStatus struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	Queued     int    `json:"queued"`
	Processing int    `json:"processing"`
	Ready      int    `json:"ready"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
	JobDBPath  string `json:"job_db_path,omitempty"`
}

// LogTailResponse carries a page of daemon log lines plus the byte offset to
// resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormatBytes renders a byte count for humans.
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}
