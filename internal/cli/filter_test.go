package cli

import (
	"testing"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

func TestFilterEnvironments(t *testing.T) {
	envs := []scanner.Environment{
		env("/a", 100*MB, 200, scanner.VeryOld, true),
		env("/b", 5*MB, 200, scanner.VeryOld, true),
		env("/c", 100*MB, 30, scanner.Old, false),
		env("/d", 100*MB, 1, scanner.Recent, true),
	}

	tests := []struct {
		name   string
		filter scanFilter
		want   []string
	}{
		{"no filter", scanFilter{}, []string{"/a", "/b", "/c", "/d"}},
		{"min size", scanFilter{MinSize: 10 * MB}, []string{"/a", "/c", "/d"}},
		{"very old only", scanFilter{Buckets: map[scanner.AgeBucket]bool{scanner.VeryOld: true}}, []string{"/a", "/b"}},
		{"skip unmanaged", scanFilter{SkipUnmanaged: true}, []string{"/a", "/b", "/d"}},
		{
			"combined",
			scanFilter{MinSize: 10 * MB, Buckets: map[scanner.AgeBucket]bool{scanner.Old: true, scanner.VeryOld: true}, SkipUnmanaged: true},
			[]string{"/a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterEnvironments(envs, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i].Path != want {
					t.Errorf("got[%d].Path = %q, want %q", i, got[i].Path, want)
				}
			}
		})
	}
}

func TestFilterEnvironments_Empty(t *testing.T) {
	if got := filterEnvironments(nil, scanFilter{MinSize: 1}); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestParseBuckets(t *testing.T) {
	tests := []struct {
		in      string
		want    []scanner.AgeBucket
		all     bool
		wantErr bool
	}{
		{in: "", all: true},
		{in: "all", all: true},
		{in: "old", want: []scanner.AgeBucket{scanner.Old, scanner.VeryOld}},
		{in: "very-old", want: []scanner.AgeBucket{scanner.VeryOld}},
		{in: "Recent", want: []scanner.AgeBucket{scanner.Recent}},
		{in: "ancient", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBuckets(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBuckets(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.all {
				if got != nil {
					t.Errorf("parseBuckets(%q) = %v, want nil", tt.in, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseBuckets(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for _, b := range tt.want {
				if !got[b] {
					t.Errorf("parseBuckets(%q) missing %v", tt.in, b)
				}
			}
		})
	}
}

func TestParseMinSize(t *testing.T) {
	if got, err := parseMinSize("", 42); err != nil || got != 42 {
		t.Errorf("parseMinSize(\"\") = %d, %v, want 42, nil", got, err)
	}
	if got, err := parseMinSize("100MB", 0); err != nil || got != 100*MB {
		t.Errorf("parseMinSize(100MB) = %d, %v, want %d", got, err, 100*MB)
	}
	if _, err := parseMinSize("lots", 0); err == nil {
		t.Error("parseMinSize(lots) should fail")
	}
}

func TestSortBySize(t *testing.T) {
	envs := []scanner.Environment{
		env("/b", 10, 0, scanner.Recent, true),
		env("/c", 30, 0, scanner.Recent, true),
		env("/a", 10, 0, scanner.Recent, true),
	}
	sortBySize(envs)
	want := []string{"/c", "/a", "/b"}
	for i, w := range want {
		if envs[i].Path != w {
			t.Errorf("envs[%d].Path = %q, want %q", i, envs[i].Path, w)
		}
	}
}
