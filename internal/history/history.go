package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// Item is one environment removed during a run.
type Item struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Bytes  int64  `json:"bytes"`
	// Unmanaged marks environments that had no dependency manifest.
	Unmanaged bool `json:"unmanaged,omitempty"`
}

// Entry represents a single deletion run recorded in the history.
type Entry struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Root       string    `json:"root"`
	Items      []Item    `json:"items"`
	Failed     int       `json:"failed"`
	BytesFreed int64     `json:"bytes_freed"`
	Method     string    `json:"method"` // "trash" or "permanent"
}

// BucketStats holds aggregate statistics for a single age bucket.
type BucketStats struct {
	BytesFreed   int64 `json:"bytes_freed"`
	Environments int   `json:"environments"`
}

// Stats holds aggregate deletion statistics.
type Stats struct {
	TotalFreed        int64                  `json:"total_freed"`
	TotalRuns         int                    `json:"total_runs"`
	TotalEnvironments int                    `json:"total_environments"`
	TotalFailed       int                    `json:"total_failed"`
	ByBucket          map[string]BucketStats `json:"by_bucket"`
	Recent            []Entry                `json:"recent"`
}

// History manages the deletion history file.
type History struct {
	path string
}

// New creates a new History that reads/writes the given file path.
func New(path string) *History {
	return &History{path: path}
}

// DefaultPath returns the default history file location.
func DefaultPath() string {
	return filepath.Join(utils.DataDir(), "history.json")
}

// NewEntry starts an entry with a fresh run ID.
func NewEntry(root, method string, now time.Time) Entry {
	return Entry{RunID: uuid.NewString(), Timestamp: now, Root: root, Method: method}
}

// Add appends a removed environment and updates BytesFreed.
func (e *Entry) Add(it Item) {
	e.Items = append(e.Items, it)
	e.BytesFreed += it.Bytes
}

// Record appends an entry to the history file. Entries with nothing
// removed and nothing failed are ignored.
func (h *History) Record(e Entry) error {
	if len(e.Items) == 0 && e.Failed == 0 {
		return nil
	}
	entries, err := h.Load()
	if err != nil {
		// A corrupt file is replaced by the new entry.
		entries = nil
	}

	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// Load reads all entries from the history file.
func (h *History) Load() ([]Entry, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	return entries, nil
}

// Stats computes aggregate statistics from the history.
func (h *History) Stats() Stats {
	s := Stats{ByBucket: make(map[string]BucketStats)}
	entries, err := h.Load()
	if err != nil || len(entries) == 0 {
		return s
	}

	s.TotalRuns = len(entries)
	for _, e := range entries {
		s.TotalFreed += e.BytesFreed
		s.TotalFailed += e.Failed
		s.TotalEnvironments += len(e.Items)
		for _, it := range e.Items {
			bs := s.ByBucket[it.Bucket]
			bs.BytesFreed += it.Bytes
			bs.Environments++
			s.ByBucket[it.Bucket] = bs
		}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	s.Recent = sorted[:min(5, len(sorted))]

	return s
}
