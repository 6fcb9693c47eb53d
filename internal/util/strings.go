// Package util provides small formatting helpers shared by the terminal views.
package util

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// ANSI escape codes and wide characters are accounted for, so styled text can
// be passed in.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, "...")
}

// FormatPercent renders a progress value as a whole percentage, e.g. "42%".
// Values are floored so 99.9 never reads as complete.
func FormatPercent(p float64) string {
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%d%%", int(math.Floor(p)))
}

// FileList names files by base name, listing at most limit of them and
// summarizing the rest, e.g. "a.pdf, b.pdf and 3 more".
func FileList(files []string, limit int) string {
	if len(files) == 0 {
		return ""
	}
	if limit < 1 {
		limit = 1
	}
	names := make([]string, 0, min(len(files), limit))
	for _, f := range files[:min(len(files), limit)] {
		names = append(names, filepath.Base(f))
	}
	list := strings.Join(names, ", ")
	if rest := len(files) - len(names); rest > 0 {
		list += fmt.Sprintf(" and %d more", rest)
	}
	return list
}
