package jobs

import "time"

// Status represents the lifecycle of an export job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusReady,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether the given status is a known lifecycle state.
func ValidStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Job is one export request moving through the pipeline.
type Job struct {
	ID           string
	UserID       string
	Language     string
	Percentage   float64
	Gender       string
	AgeGroup     string
	Education    string
	Domain       string
	Category     string
	Split        string
	Format       string
	Status       Status
	ProgressPct  int
	SampleCount  int
	TotalCount   int
	ArchiveKey   string
	DownloadURL  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Stats aggregates job counts per lifecycle state.
type Stats struct {
	Queued     int
	Processing int
	Ready      int
	Failed     int
	Total      int
}
