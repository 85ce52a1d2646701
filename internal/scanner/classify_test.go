package scanner

import (
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	th := Thresholds{RecentDays: 14, OldDays: 90}
	day := 24 * time.Hour

	tests := []struct {
		name string
		age  time.Duration
		want AgeBucket
	}{
		{"fresh", 0, Recent},
		{"future mtime", -3 * day, Recent},
		{"at recent boundary", 14 * day, Recent},
		{"just past recent", 14*day + time.Second, Old},
		{"at old boundary", 90 * day, Old},
		{"just past old", 90*day + time.Second, VeryOld},
		{"ancient", 200 * day, VeryOld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(now.Add(-tt.age), now, th); got != tt.want {
				t.Errorf("Classify(age %v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	now := time.Now()
	th := DefaultThresholds()
	prev := Recent
	for d := 0; d <= 400; d++ {
		b := Classify(now.Add(-time.Duration(d)*24*time.Hour), now, th)
		if b < prev {
			t.Fatalf("bucket went from %v to %v at %d days", prev, b, d)
		}
		prev = b
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		th      Thresholds
		wantErr bool
	}{
		{Thresholds{14, 90}, false},
		{Thresholds{1, 2}, false},
		{Thresholds{30, 30}, true},
		{Thresholds{90, 14}, true},
		{Thresholds{0, 10}, true},
		{Thresholds{-1, 10}, true},
	}
	for _, tt := range tests {
		err := tt.th.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) err = %v, wantErr %v", tt.th, err, tt.wantErr)
		}
		var ce *ConfigError
		if err != nil && !errors.As(err, &ce) {
			t.Errorf("Validate(%+v) returned %T, want *ConfigError", tt.th, err)
		}
	}
}

func TestParseBucket(t *testing.T) {
	for _, b := range []AgeBucket{Recent, Old, VeryOld} {
		got, err := ParseBucket(b.String())
		if err != nil || got != b {
			t.Errorf("ParseBucket(%q) = (%v, %v), want %v", b.String(), got, err, b)
		}
	}
	if _, err := ParseBucket("ancient"); err == nil {
		t.Error("ParseBucket(ancient) should fail")
	}
}
