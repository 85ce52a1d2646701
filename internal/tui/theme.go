package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all TUI colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorSubtle    = lipgloss.Color("236")
	colorText      = lipgloss.Color("252")
	colorWhite     = lipgloss.Color("255")
	colorDangerBg  = lipgloss.Color("52")
	colorBorder    = lipgloss.Color("238")
)

// ---------------------------------------------------------------------------
// Age bucket colors -- shared by the table, the details panel and the
// stats line.
// ---------------------------------------------------------------------------

var bucketColors = map[scanner.AgeBucket]lipgloss.Color{
	scanner.Recent:  colorSuccess,
	scanner.Old:     colorWarning,
	scanner.VeryOld: colorDanger,
}

// BucketColor returns the theme color for an age bucket.
// Unknown buckets fall back to colorPrimary.
func BucketColor(b scanner.AgeBucket) lipgloss.Color {
	if c, ok := bucketColors[b]; ok {
		return c
	}
	return colorPrimary
}

func bucketStyle(b scanner.AgeBucket) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(BucketColor(b))
}

// ---------------------------------------------------------------------------
// Bar colors -- used for ratio bars (marked share of the total).
// ---------------------------------------------------------------------------

var (
	barColorHigh   = lipgloss.Color("196")
	barColorMedium = lipgloss.Color("214")
	barColorLow    = lipgloss.Color("82")
)

// barColor returns a color based on a 0.0-1.0 ratio.
//   - >= 0.75 -> high (red)
//   - >= 0.40 -> medium (orange/yellow)
//   - < 0.40  -> low (green)
func barColor(ratio float64) lipgloss.Color {
	switch {
	case ratio >= 0.75:
		return barColorHigh
	case ratio >= 0.40:
		return barColorMedium
	default:
		return barColorLow
	}
}
