package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader draws a header bar with breadcrumb navigation.
func renderHeader(parts ...string) string {
	breadcrumb := "venvkiller"
	for _, p := range parts {
		if p == "" {
			continue
		}
		breadcrumb += " > " + p
	}
	return headerBarStyle.Render(breadcrumb)
}

// renderFooter draws a footer with keybind hints.
func renderFooter(hints string) string {
	return footerStyle.Render(hints)
}

// renderRatioBar draws a bar of the given width coloured by how full it is.
// ratio is clamped to 0.0-1.0.
func renderRatioBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	if filled == 0 && ratio > 0 {
		filled = 1
	}
	empty := width - filled
	fillStyle := lipgloss.NewStyle().Foreground(barColor(ratio))
	return "[" + fillStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", empty) + "]"
}
