package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

func FormatSize(bytes int64) string {
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatAge renders t relative to now, e.g. "3 months ago".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// AgeDays returns the number of whole days between t and now, never negative.
func AgeDays(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// TruncatePath shortens path to at most width terminal cells by cutting
// from the left, so the most specific components stay visible.
func TruncatePath(path string, width int) string {
	if width <= 0 || runewidth.StringWidth(path) <= width {
		return path
	}
	if width <= 1 {
		return runewidth.Truncate(path, width, "")
	}
	runes := []rune(path)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail)+1 <= width {
			return "…" + tail
		}
	}
	return "…"
}
