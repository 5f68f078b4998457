package archive

import (
	"fmt"
	"strings"
	"time"
)

func renderReadme(language string, pct float64, sampleCount int, includeXLSX bool, now time.Time) string {
	format := "CSV (.csv)"
	metadataName := "metadata.csv"
	if includeXLSX {
		format = "Excel (.xlsx)"
		metadataName = "metadata.xlsx"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset Export Summary\n")
	fmt.Fprintf(&b, "======================\n")
	fmt.Fprintf(&b, "Language         : %s\n", strings.ToUpper(language))
	fmt.Fprintf(&b, "Percentage       : %s%%\n", FormatPercent(pct))
	fmt.Fprintf(&b, "Total Samples    : %d\n", sampleCount)
	fmt.Fprintf(&b, "File Format      : %s\n", format)
	fmt.Fprintf(&b, "Date             : %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Folder Structure\n")
	fmt.Fprintf(&b, "================\n")
	fmt.Fprintf(&b, "%s_%spct_<date>/\n", strings.ToLower(language), FormatPercent(pct))
	fmt.Fprintf(&b, "|-- %s        - Tabular data with metadata\n", metadataName)
	fmt.Fprintf(&b, "|-- README.txt           - This file\n")
	fmt.Fprintf(&b, "`-- audio/               - Folder with audio clips\n")
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Notes\n")
	fmt.Fprintf(&b, "=====\n")
	fmt.Fprintf(&b, "- All audio filenames match the metadata rows.\n")
	fmt.Fprintf(&b, "- File and folder names include language code, percentage, and date.\n")
	fmt.Fprintf(&b, "- Use Excel or CSV-compatible software to open metadata.\n")
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Contact\n")
	fmt.Fprintf(&b, "=======\n")
	fmt.Fprintf(&b, "For feedback or support, reach out to the dataset team.\n")
	return b.String()
}
