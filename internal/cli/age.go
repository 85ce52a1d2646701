package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// BucketBreakdown holds aggregated byte sizes grouped by age bucket.
type BucketBreakdown struct {
	Recent  int64 `json:"recent"`
	Old     int64 `json:"old"`
	VeryOld int64 `json:"very_old"`
	Total   int64 `json:"total"`
}

// bucketSummary aggregates environments by their age bucket.
func bucketSummary(envs []scanner.Environment) BucketBreakdown {
	var bb BucketBreakdown
	for _, e := range envs {
		switch e.Bucket {
		case scanner.Recent:
			bb.Recent += e.SizeBytes
		case scanner.Old:
			bb.Old += e.SizeBytes
		case scanner.VeryOld:
			bb.VeryOld += e.SizeBytes
		}
		bb.Total += e.SizeBytes
	}
	return bb
}

func bucketStyle(b scanner.AgeBucket) lipgloss.Style {
	switch b {
	case scanner.VeryOld:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case scanner.Old:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	}
}

// bucketSummaryLine renders a colored per-bucket summary string.
// Returns empty string if Total == 0.
func bucketSummaryLine(bb BucketBreakdown) string {
	if bb.Total == 0 {
		return ""
	}

	pct := func(n int64) int {
		return int(float64(n) / float64(bb.Total) * 100)
	}

	var parts []string
	for _, part := range []struct {
		bucket scanner.AgeBucket
		size   int64
	}{
		{scanner.VeryOld, bb.VeryOld},
		{scanner.Old, bb.Old},
		{scanner.Recent, bb.Recent},
	} {
		if part.size == 0 {
			continue
		}
		parts = append(parts, bucketStyle(part.bucket).Render(
			fmt.Sprintf("%s: %s (%d%%)", bucketTitle(part.bucket), utils.FormatSize(part.size), pct(part.size)),
		))
	}

	return strings.Join(parts, "  ")
}
