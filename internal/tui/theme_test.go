package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

func TestBucketColor(t *testing.T) {
	tests := []struct {
		bucket scanner.AgeBucket
		want   lipgloss.Color
	}{
		{scanner.Recent, colorSuccess},
		{scanner.Old, colorWarning},
		{scanner.VeryOld, colorDanger},
		{scanner.AgeBucket(42), colorPrimary},
	}
	for _, tt := range tests {
		t.Run(tt.bucket.String(), func(t *testing.T) {
			if got := BucketColor(tt.bucket); got != tt.want {
				t.Errorf("BucketColor(%v) = %v, want %v", tt.bucket, got, tt.want)
			}
		})
	}
}

func TestBarColor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  lipgloss.Color
	}{
		{1.00, barColorHigh},
		{0.80, barColorHigh},
		{0.75, barColorHigh},
		{0.74, barColorMedium},
		{0.50, barColorMedium},
		{0.40, barColorMedium},
		{0.39, barColorLow},
		{0.10, barColorLow},
		{0.00, barColorLow},
	}
	for _, tt := range tests {
		if got := barColor(tt.ratio); got != tt.want {
			t.Errorf("barColor(%.2f) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestRenderRatioBar(t *testing.T) {
	if got := renderRatioBar(0.5, 0); got != "" {
		t.Errorf("renderRatioBar(0.5, 0) = %q, want empty", got)
	}
	for _, ratio := range []float64{-1, 0, 0.01, 0.5, 1, 2} {
		got := renderRatioBar(ratio, 10)
		if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
			t.Errorf("renderRatioBar(%v, 10) = %q, want bracketed bar", ratio, got)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != 10 {
			t.Errorf("renderRatioBar(%v, 10) has %d cells, want 10", ratio, n)
		}
	}
	if got := renderRatioBar(0.01, 10); !strings.Contains(got, "█") {
		t.Errorf("renderRatioBar(0.01, 10) = %q, want at least one filled cell", got)
	}
}

func TestRenderHeader(t *testing.T) {
	got := renderHeader("/home/dev", "")
	if !strings.Contains(got, "venvkiller > /home/dev") {
		t.Errorf("renderHeader = %q, want breadcrumb", got)
	}
	if strings.Contains(got, "> >") {
		t.Errorf("renderHeader = %q, empty parts should be skipped", got)
	}
}
