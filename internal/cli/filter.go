package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lu-zhengda/venvkiller/internal/config"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

// scanFilter narrows a scan result for display or deletion.
type scanFilter struct {
	MinSize int64
	// Buckets to keep; nil keeps all.
	Buckets map[scanner.AgeBucket]bool
	// SkipUnmanaged drops environments with no manifest next to them.
	SkipUnmanaged bool
}

func (f scanFilter) keep(e scanner.Environment) bool {
	if e.SizeBytes < f.MinSize {
		return false
	}
	if f.Buckets != nil && !f.Buckets[e.Bucket] {
		return false
	}
	if f.SkipUnmanaged && !e.HasManifest {
		return false
	}
	return true
}

func filterEnvironments(envs []scanner.Environment, f scanFilter) []scanner.Environment {
	out := make([]scanner.Environment, 0, len(envs))
	for _, e := range envs {
		if f.keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// parseBuckets turns a --bucket value into a bucket set. "old" means old
// and very old; "all" keeps every bucket.
func parseBuckets(s string) (map[scanner.AgeBucket]bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return nil, nil
	case "old":
		return map[scanner.AgeBucket]bool{scanner.Old: true, scanner.VeryOld: true}, nil
	}
	b, err := scanner.ParseBucket(s)
	if err != nil {
		return nil, err
	}
	return map[scanner.AgeBucket]bool{b: true}, nil
}

func parseMinSize(s string, fallback int64) (int64, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := config.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --min-size: %w", err)
	}
	return n, nil
}

// sortBySize orders environments largest first, then by path.
func sortBySize(envs []scanner.Environment) {
	sort.SliceStable(envs, func(i, j int) bool {
		if envs[i].SizeBytes != envs[j].SizeBytes {
			return envs[i].SizeBytes > envs[j].SizeBytes
		}
		return envs[i].Path < envs[j].Path
	})
}
