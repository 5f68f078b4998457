package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatPercent renders a percentage for folder and file names without a
// trailing ".0" for whole numbers.
func FormatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}

// FolderName builds the archive's root folder: <language>_<pct>pct_<date>.
func FolderName(language string, pct float64, date time.Time) string {
	return fmt.Sprintf("%s_%spct_%s", strings.ToLower(language), FormatPercent(pct), date.Format("2006-01-02"))
}

// FileName builds the user-facing archive download name.
func FileName(language string, pct float64, date time.Time) string {
	return FolderName(language, pct, date) + "_dataset.zip"
}

// ExportKey builds the bucket key a finished export is stored under.
func ExportKey(language string, pct float64, jobID string) string {
	return fmt.Sprintf("exports/%s_%spct_%s.zip", strings.ToLower(language), FormatPercent(pct), jobID)
}
