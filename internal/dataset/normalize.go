package dataset

import (
	"fmt"
	"strings"
)

// NormalizeFilter maps the caller-facing "all" convention onto the internal
// no-constraint value. Comparison is case-insensitive; surrounding whitespace
// is ignored.
func NormalizeFilter(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" || trimmed == "all" {
		return ""
	}
	return trimmed
}

// NormalizeCategory applies the category synonym table before querying.
// "all" clears the constraint; Yoruba read recordings are catalogued as
// spontaneous, so a read filter for yoruba is remapped accordingly.
func NormalizeCategory(value, language string) string {
	category := NormalizeFilter(value)
	if category == "" {
		return ""
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if category == string(CategoryRead) && language == "yoruba" {
		return string(CategorySpontaneous)
	}
	return category
}

// NormalizeDomain applies the domain sub-code table. For Hausa the legacy
// "EC" sub-code was folded into "EV"; "all" clears the constraint.
func NormalizeDomain(value, language string) string {
	domain := strings.TrimSpace(value)
	if domain == "" {
		return ""
	}
	if strings.ToLower(strings.TrimSpace(language)) == "hausa" {
		switch strings.ToLower(domain) {
		case "all":
			return ""
		case "ec":
			return "EV"
		}
	}
	if strings.EqualFold(domain, "all") {
		return ""
	}
	return domain
}

// FolderForCategory maps a record's category and language to the folder the
// raw audio lives under in the content store. Spontaneous recordings for
// yoruba, naija, and hausa were uploaded under read-as-spontaneous, as were
// yoruba read recordings.
func FolderForCategory(category, language string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	language = strings.ToLower(strings.TrimSpace(language))

	switch {
	case category == string(CategorySpontaneous):
		switch language {
		case "yoruba", "naija", "hausa":
			return "read-as-spontaneous"
		}
	case category == string(CategoryRead) && language == "yoruba":
		return "read-as-spontaneous"
	case category == string(CategoryRead):
		return "read"
	}
	return category
}

// Normalize returns a copy of the criteria with the "all" convention and the
// language-dependent remaps applied, and the language lowercased.
func (c Criteria) Normalize() (Criteria, error) {
	language := strings.ToLower(strings.TrimSpace(c.Language))
	if language == "" {
		return Criteria{}, fmt.Errorf("language is required")
	}
	if !SupportedLanguage(language) {
		return Criteria{}, fmt.Errorf("unsupported language %q", c.Language)
	}
	return Criteria{
		Language:  language,
		Gender:    NormalizeFilter(c.Gender),
		AgeGroup:  NormalizeFilter(c.AgeGroup),
		Education: NormalizeFilter(c.Education),
		Domain:    NormalizeDomain(c.Domain, language),
		Category:  NormalizeCategory(c.Category, language),
		Split:     NormalizeFilter(c.Split),
	}, nil
}

// StorageKey derives the content-store object key for a record whose locator
// is not already a resolved URL: <language>/<folder>/<record-id>.wav.
func StorageKey(record AudioRecord) string {
	folder := FolderForCategory(string(record.Category), record.Language)
	return fmt.Sprintf("%s/%s/%s.wav", strings.ToLower(record.Language), folder, record.ID)
}

// IsURLLocator reports whether a storage link is a fully resolved URL rather
// than an opaque object key.
func IsURLLocator(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}
