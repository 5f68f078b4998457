package testsupport

import (
	"context"
	"fmt"
	"testing"

	"voxport/internal/config"
	"voxport/internal/dataset"
	"voxport/internal/jobs"
)

// MustOpenRecords opens a dataset.Store for tests and registers cleanup.
func MustOpenRecords(t testing.TB, cfg *config.Config) *dataset.Store {
	t.Helper()

	store, err := dataset.Open(cfg)
	if err != nil {
		t.Fatalf("dataset.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenJobs opens a jobs.Store for tests and registers cleanup.
func MustOpenJobs(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRecords inserts count synthetic records for the given language and
// returns their ids in insertion order.
func SeedRecords(t testing.TB, store *dataset.Store, language string, count int) []string {
	t.Helper()

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		record := SampleRecord(language, i)
		if err := store.Put(context.Background(), record); err != nil {
			t.Fatalf("seed record %s: %v", record.ID, err)
		}
		ids = append(ids, record.ID)
	}
	return ids
}

// SampleRecord builds a deterministic synthetic record for tests.
func SampleRecord(language string, n int) dataset.AudioRecord {
	gender := "male"
	if n%2 == 1 {
		gender = "female"
	}
	id := fmt.Sprintf("%s-%04d", language, n)
	return dataset.AudioRecord{
		ID:          id,
		Language:    language,
		Category:    dataset.CategoryRead,
		SpeakerID:   fmt.Sprintf("spk-%03d", n%7),
		Transcript:  fmt.Sprintf("sample transcript %d", n),
		Duration:    3.5,
		Gender:      gender,
		AgeGroup:    "19-25",
		Education:   "tertiary",
		SNR:         21.4,
		Domain:      "general",
		Split:       "train",
		StorageLink: fmt.Sprintf("%s/read/%s.wav", language, id),
	}
}
