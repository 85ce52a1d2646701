package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/history"
	"github.com/lu-zhengda/venvkiller/internal/scancache"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version      string                `json:"version"`
	Timestamp    time.Time             `json:"timestamp"`
	Root         string                `json:"root"`
	Environments []scanner.Environment `json:"environments"`
	TotalSize    int64                 `json:"total_size"`
	TotalItems   int                   `json:"total_items"`
	Buckets      BucketBreakdown       `json:"buckets"`
	Warnings     []string              `json:"warnings,omitempty"`
	Diff         *scancache.DiffResult `json:"diff,omitempty"`
}

func buildScanJSON(envs []scanner.Environment, p engine.ScanProgress, diff *scancache.DiffResult) scanJSON {
	bb := bucketSummary(envs)
	result := scanJSON{
		Version:      version,
		Timestamp:    time.Now().UTC(),
		Root:         p.Root,
		Environments: envs,
		TotalSize:    bb.Total,
		TotalItems:   len(envs),
		Buckets:      bb,
		Diff:         diff,
	}
	if result.Environments == nil {
		result.Environments = []scanner.Environment{}
	}
	for _, w := range p.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}
	return result
}

// ---------------------------------------------------------------------------
// Clean JSON type
// ---------------------------------------------------------------------------

type outcomeJSON struct {
	Path       string `json:"path"`
	FreedBytes int64  `json:"freed_bytes"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

type cleanJSON struct {
	scanJSON
	DryRun       bool          `json:"dry_run"`
	DeletedSize  int64         `json:"deleted_size"`
	DeletedItems int           `json:"deleted_items"`
	Errors       int           `json:"errors"`
	Outcomes     []outcomeJSON `json:"outcomes"`
}

func buildCleanJSON(targets []scanner.Environment, p engine.ScanProgress, outcomes []engine.Outcome, dryRun bool) cleanJSON {
	result := cleanJSON{
		scanJSON:    buildScanJSON(targets, p, nil),
		DryRun:      dryRun,
		DeletedSize: engine.FreedBytes(outcomes),
		Errors:      len(engine.Failures(outcomes)),
		Outcomes:    []outcomeJSON{},
	}
	for _, o := range outcomes {
		oj := outcomeJSON{Path: o.Path, FreedBytes: o.FreedBytes, Skipped: o.Skipped}
		if o.Err != nil {
			oj.Error = o.Err.Error()
		}
		if o.OK() {
			result.DeletedItems++
		}
		result.Outcomes = append(result.Outcomes, oj)
	}
	return result
}

// ---------------------------------------------------------------------------
// Stats JSON type
// ---------------------------------------------------------------------------

type statsJSON struct {
	Version string `json:"version"`
	history.Stats
}

func buildStatsJSON(stats history.Stats) statsJSON {
	return statsJSON{Version: version, Stats: stats}
}
