package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Category classifies how a recording was produced.
type Category string

const (
	CategoryRead              Category = "read"
	CategorySpontaneous       Category = "spontaneous"
	CategoryReadAsSpontaneous Category = "read_as_spontaneous"
)

var supportedLanguages = map[string]struct{}{
	"hausa":  {},
	"yoruba": {},
	"igbo":   {},
	"naija":  {},
}

// SupportedLanguage reports whether a language is part of the corpus.
// Matching is case-insensitive.
func SupportedLanguage(language string) bool {
	_, ok := supportedLanguages[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

// SupportedLanguages returns the corpus languages in stable order.
func SupportedLanguages() []string {
	return []string{"hausa", "igbo", "naija", "yoruba"}
}

// AudioRecord is one speech sample with its transcript and demographic
// metadata. Records are immutable from the export pipeline's perspective.
type AudioRecord struct {
	ID          string
	Language    string
	Category    Category
	SpeakerID   string
	Transcript  string
	Duration    float64
	Gender      string
	AgeGroup    string
	Education   string
	SNR         float64
	Domain      string
	Split       string
	StorageLink string
	CreatedAt   time.Time
}

// Criteria narrows a record query. Language is required; the remaining fields
// are exact-match filters where the empty string means "no constraint".
// Callers should pass values through Normalize first so the "all" convention
// and language-dependent remaps are applied.
type Criteria struct {
	Language  string
	Gender    string
	AgeGroup  string
	Education string
	Domain    string
	Category  string
	Split     string
}

// ErrInvalidPercentage is returned for selector percentages outside (0,100].
var ErrInvalidPercentage = fmt.Errorf("percentage must be in (0,100]")

// ErrNoRecords is returned when a filter matches nothing.
var ErrNoRecords = fmt.Errorf("no matching records")

// Selector subsets a filtered record set, either by percentage of the total
// or by absolute count. Exactly one of the two is set.
type Selector struct {
	Percentage float64
	Limit      int
}

// PercentSelector selects ceil(total × p / 100) records.
func PercentSelector(p float64) Selector {
	return Selector{Percentage: p}
}

// LimitSelector selects at most n records.
func LimitSelector(n int) Selector {
	return Selector{Limit: n}
}

// Count resolves the selector against a filtered total. Percentage selection
// always yields at least one record when the total is positive.
func (s Selector) Count(total int) (int, error) {
	if total < 0 {
		total = 0
	}
	if s.Limit > 0 {
		if s.Limit > total {
			return total, nil
		}
		return s.Limit, nil
	}
	if s.Percentage <= 0 || s.Percentage > 100 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPercentage, s.Percentage)
	}
	if total == 0 {
		return 0, nil
	}
	count := int(math.Ceil(float64(total) * s.Percentage / 100))
	if count < 1 {
		count = 1
	}
	return count, nil
}
