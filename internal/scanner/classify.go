package scanner

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AgeBucket groups environments by how long they have been untouched.
type AgeBucket int

const (
	Recent AgeBucket = iota
	Old
	VeryOld
)

func (b AgeBucket) String() string {
	switch b {
	case Recent:
		return "recent"
	case Old:
		return "old"
	case VeryOld:
		return "very-old"
	default:
		return "unknown"
	}
}

func (b AgeBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// ParseBucket accepts the names produced by AgeBucket.String.
func ParseBucket(s string) (AgeBucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recent":
		return Recent, nil
	case "old":
		return Old, nil
	case "very-old", "veryold", "very_old":
		return VeryOld, nil
	}
	return 0, fmt.Errorf("unknown age bucket %q (want recent, old or very-old)", s)
}

// Thresholds are the day boundaries between age buckets.
type Thresholds struct {
	RecentDays int `yaml:"recent_days" json:"recent_days"`
	OldDays    int `yaml:"old_days" json:"old_days"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{RecentDays: 14, OldDays: 90}
}

// Validate requires 0 < RecentDays < OldDays.
func (t Thresholds) Validate() error {
	if t.RecentDays <= 0 {
		return &ConfigError{Field: "recent days", Value: strconv.Itoa(t.RecentDays), Reason: "must be positive"}
	}
	if t.OldDays <= t.RecentDays {
		return &ConfigError{
			Field:  "old days",
			Value:  strconv.Itoa(t.OldDays),
			Reason: fmt.Sprintf("must be greater than recent days (%d)", t.RecentDays),
		}
	}
	return nil
}

// Classify buckets lastModified against now. An age of exactly
// RecentDays is still Recent and exactly OldDays is still Old.
// Timestamps in the future count as age zero.
func Classify(lastModified, now time.Time, t Thresholds) AgeBucket {
	age := now.Sub(lastModified)
	if age < 0 {
		age = 0
	}
	switch {
	case age <= days(t.RecentDays):
		return Recent
	case age <= days(t.OldDays):
		return Old
	default:
		return VeryOld
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
