package dataset_test

import (
	"errors"
	"testing"

	"voxport/internal/dataset"
)

func TestNormalizeFilterAllClearsConstraint(t *testing.T) {
	for _, value := range []string{"all", "ALL", " All ", ""} {
		if got := dataset.NormalizeFilter(value); got != "" {
			t.Fatalf("NormalizeFilter(%q) = %q, want empty", value, got)
		}
	}
	if got := dataset.NormalizeFilter(" Female "); got != "female" {
		t.Fatalf("NormalizeFilter = %q, want %q", got, "female")
	}
}

func TestNormalizeCategoryYorubaReadRemap(t *testing.T) {
	if got := dataset.NormalizeCategory("read", "yoruba"); got != "spontaneous" {
		t.Fatalf("read/yoruba = %q, want spontaneous", got)
	}
	if got := dataset.NormalizeCategory("read", "hausa"); got != "read" {
		t.Fatalf("read/hausa = %q, want read", got)
	}
	if got := dataset.NormalizeCategory("all", "yoruba"); got != "" {
		t.Fatalf("all/yoruba = %q, want empty", got)
	}
}

func TestNormalizeDomainHausaSubcode(t *testing.T) {
	if got := dataset.NormalizeDomain("EC", "hausa"); got != "EV" {
		t.Fatalf("EC/hausa = %q, want EV", got)
	}
	if got := dataset.NormalizeDomain("ec", "hausa"); got != "EV" {
		t.Fatalf("ec/hausa = %q, want EV", got)
	}
	if got := dataset.NormalizeDomain("all", "hausa"); got != "" {
		t.Fatalf("all/hausa = %q, want empty", got)
	}
	if got := dataset.NormalizeDomain("EC", "igbo"); got != "EC" {
		t.Fatalf("EC/igbo = %q, want EC", got)
	}
	if got := dataset.NormalizeDomain("all", "igbo"); got != "" {
		t.Fatalf("all/igbo = %q, want empty", got)
	}
}

func TestFolderForCategory(t *testing.T) {
	cases := []struct {
		category string
		language string
		want     string
	}{
		{"spontaneous", "yoruba", "read-as-spontaneous"},
		{"spontaneous", "naija", "read-as-spontaneous"},
		{"spontaneous", "hausa", "read-as-spontaneous"},
		{"spontaneous", "igbo", "spontaneous"},
		{"read", "yoruba", "read-as-spontaneous"},
		{"read", "hausa", "read"},
		{"read_as_spontaneous", "igbo", "read_as_spontaneous"},
	}
	for _, tc := range cases {
		if got := dataset.FolderForCategory(tc.category, tc.language); got != tc.want {
			t.Fatalf("FolderForCategory(%q, %q) = %q, want %q", tc.category, tc.language, got, tc.want)
		}
	}
}

func TestCriteriaNormalize(t *testing.T) {
	criteria := dataset.Criteria{
		Language: "Hausa",
		Gender:   "All",
		Domain:   "ec",
		Category: "Read",
	}
	normalized, err := criteria.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if normalized.Language != "hausa" {
		t.Fatalf("language = %q", normalized.Language)
	}
	if normalized.Gender != "" {
		t.Fatalf("gender = %q, want empty", normalized.Gender)
	}
	if normalized.Domain != "EV" {
		t.Fatalf("domain = %q, want EV", normalized.Domain)
	}
	if normalized.Category != "read" {
		t.Fatalf("category = %q, want read", normalized.Category)
	}

	if _, err := (dataset.Criteria{Language: "swahili"}).Normalize(); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestStorageKey(t *testing.T) {
	record := dataset.AudioRecord{
		ID:       "yo-0001",
		Language: "yoruba",
		Category: dataset.CategorySpontaneous,
	}
	if got := dataset.StorageKey(record); got != "yoruba/read-as-spontaneous/yo-0001.wav" {
		t.Fatalf("StorageKey = %q", got)
	}
}

func TestIsURLLocator(t *testing.T) {
	if !dataset.IsURLLocator("https://cdn.example.com/a.wav") {
		t.Fatal("https locator should be a URL")
	}
	if dataset.IsURLLocator("hausa/read/ha-1.wav") {
		t.Fatal("object key should not be a URL")
	}
}

func TestSelectorCount(t *testing.T) {
	cases := []struct {
		percentage float64
		total      int
		want       int
	}{
		{50, 20, 10},
		{50, 21, 11},
		{1, 20, 1},
		{0.5, 10, 1},
		{100, 7, 7},
		{33, 100, 33},
		{30, 0, 0},
	}
	for _, tc := range cases {
		got, err := dataset.PercentSelector(tc.percentage).Count(tc.total)
		if err != nil {
			t.Fatalf("Count(%v%%, %d): %v", tc.percentage, tc.total, err)
		}
		if got != tc.want {
			t.Fatalf("Count(%v%%, %d) = %d, want %d", tc.percentage, tc.total, got, tc.want)
		}
	}

	for _, bad := range []float64{0, -5, 101} {
		if _, err := dataset.PercentSelector(bad).Count(10); !errors.Is(err, dataset.ErrInvalidPercentage) {
			t.Fatalf("percentage %v: expected ErrInvalidPercentage, got %v", bad, err)
		}
	}

	if got, _ := dataset.LimitSelector(5).Count(3); got != 3 {
		t.Fatalf("limit clamp = %d, want 3", got)
	}
	if got, _ := dataset.LimitSelector(5).Count(30); got != 5 {
		t.Fatalf("limit = %d, want 5", got)
	}
}
