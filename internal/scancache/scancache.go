package scancache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// Snapshot captures the result of one scan of a root.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Root      string           `json:"root"`
	Buckets   []BucketSnapshot `json:"buckets"`
	TotalSize int64            `json:"total_size"`
	Paths     []string         `json:"paths"`
}

// BucketSnapshot captures the size and environment count for one age bucket.
type BucketSnapshot struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Items int    `json:"items"`
}

// BucketDiff describes how a bucket changed between two snapshots.
type BucketDiff struct {
	PreviousSize int64 `json:"previous_size"`
	CurrentSize  int64 `json:"current_size"`
	Delta        int64 `json:"delta"`
	IsNew        bool  `json:"is_new,omitempty"`
}

// DiffResult describes the differences between two snapshots.
type DiffResult struct {
	PreviousTimestamp time.Time             `json:"previous_timestamp"`
	TotalDelta        int64                 `json:"total_delta"`
	Buckets           map[string]BucketDiff `json:"buckets"`
	Added             []string              `json:"added,omitempty"`
	Removed           []string              `json:"removed,omitempty"`
}

// PathFor returns the snapshot file for root. Each root gets its own file,
// named by a hash of the cleaned absolute path.
func PathFor(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	name := strconv.FormatUint(xxhash.Sum64String(filepath.Clean(root)), 16) + ".json"
	return filepath.Join(utils.DataDir(), "scans", name)
}

// FromEnvironments builds a snapshot of envs.
func FromEnvironments(root string, envs []scanner.Environment, now time.Time) Snapshot {
	snap := Snapshot{Timestamp: now, Root: root}
	byBucket := make(map[scanner.AgeBucket]*BucketSnapshot)
	for _, e := range envs {
		b, ok := byBucket[e.Bucket]
		if !ok {
			b = &BucketSnapshot{Name: e.Bucket.String()}
			byBucket[e.Bucket] = b
		}
		b.Size += e.SizeBytes
		b.Items++
		snap.TotalSize += e.SizeBytes
		snap.Paths = append(snap.Paths, e.Path)
	}
	for _, bucket := range []scanner.AgeBucket{scanner.Recent, scanner.Old, scanner.VeryOld} {
		if b, ok := byBucket[bucket]; ok {
			snap.Buckets = append(snap.Buckets, *b)
		}
	}
	sort.Strings(snap.Paths)
	return snap
}

// Save writes a snapshot to the given path as indented JSON.
// It creates parent directories if they don't exist.
func Save(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create scan cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scan cache file: %w", err)
	}

	return nil
}

// Load reads a snapshot from the given path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read scan cache file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse scan cache file: %w", err)
	}

	return snap, nil
}

// Diff computes per-bucket size changes and the environments that appeared
// or disappeared between prev and curr.
func Diff(prev, curr Snapshot) DiffResult {
	result := DiffResult{
		PreviousTimestamp: prev.Timestamp,
		TotalDelta:        curr.TotalSize - prev.TotalSize,
		Buckets:           make(map[string]BucketDiff),
	}

	prevSizes := make(map[string]int64, len(prev.Buckets))
	for _, b := range prev.Buckets {
		prevSizes[b.Name] = b.Size
	}
	for _, b := range curr.Buckets {
		prevSize, existed := prevSizes[b.Name]
		result.Buckets[b.Name] = BucketDiff{
			PreviousSize: prevSize,
			CurrentSize:  b.Size,
			Delta:        b.Size - prevSize,
			IsNew:        !existed,
		}
		delete(prevSizes, b.Name)
	}
	for name, prevSize := range prevSizes {
		result.Buckets[name] = BucketDiff{PreviousSize: prevSize, Delta: -prevSize}
	}

	prevPaths := make(map[string]bool, len(prev.Paths))
	for _, p := range prev.Paths {
		prevPaths[p] = true
	}
	for _, p := range curr.Paths {
		if prevPaths[p] {
			delete(prevPaths, p)
			continue
		}
		result.Added = append(result.Added, p)
	}
	for p := range prevPaths {
		result.Removed = append(result.Removed, p)
	}
	sort.Strings(result.Added)
	sort.Strings(result.Removed)

	return result
}
