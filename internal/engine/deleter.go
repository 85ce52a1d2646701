package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/store"
)

// Remover removes a directory tree from disk.
type Remover interface {
	Remove(path string) error
}

// RemoverFunc adapts a plain function to Remover.
type RemoverFunc func(path string) error

func (f RemoverFunc) Remove(path string) error { return f(path) }

// DeletionError describes why one environment could not be deleted.
type DeletionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DeletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delete %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("delete %s: %s", e.Path, e.Reason)
}

func (e *DeletionError) Unwrap() error { return e.Err }

// Outcome is the result of processing one marked environment.
type Outcome struct {
	Path        string            `json:"path"`
	FreedBytes  int64             `json:"freed_bytes"`
	Bucket      scanner.AgeBucket `json:"age_bucket"`
	HasManifest bool              `json:"has_manifest"`
	Err         error             `json:"-"`
	// Skipped means the record was already gone or no longer marked.
	Skipped bool `json:"skipped,omitempty"`
}

func (o Outcome) OK() bool { return o.Err == nil && !o.Skipped }

// Progress is reported after every processed item.
type Progress struct {
	Done    int
	Total   int
	Current string
	Outcome Outcome
}

// Deleter removes marked environments one at a time.
type Deleter struct {
	remover Remover
	log     *slog.Logger
}

func NewDeleter(r Remover, log *slog.Logger) *Deleter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Deleter{remover: r, log: log}
}

// DeleteMarked processes the environments marked in st when it is called.
// Each item is re-checked against st and the filesystem before removal.
// Successful deletions are removed from st; failures stay, unmarked, with
// the reason recorded. ctx is honoured between items, never mid-item.
func (d *Deleter) DeleteMarked(ctx context.Context, st *store.Store, onProgress func(Progress)) []Outcome {
	marked := st.Marked()
	outcomes := make([]Outcome, 0, len(marked))

	for i, env := range marked {
		if ctx.Err() != nil {
			d.log.Debug("deletion cancelled", "remaining", len(marked)-i)
			break
		}
		o := d.deleteOne(st, env.Path)
		outcomes = append(outcomes, o)
		if onProgress != nil {
			onProgress(Progress{Done: i + 1, Total: len(marked), Current: env.Path, Outcome: o})
		}
	}
	return outcomes
}

func (d *Deleter) deleteOne(st *store.Store, path string) Outcome {
	env, ok := st.Get(path)
	if !ok || !env.Marked {
		d.log.Debug("skip deletion", "path", path, "recorded", ok)
		return Outcome{Path: path, Skipped: true}
	}

	if err := checkTarget(path); err != nil {
		return d.fail(st, env, err)
	}
	if err := d.remover.Remove(path); err != nil {
		return d.fail(st, env, &DeletionError{Path: path, Reason: "remove failed", Err: err})
	}
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		return d.fail(st, env, &DeletionError{Path: path, Reason: "still present after removal", Err: err})
	}

	st.Remove(path)
	d.log.Info("deleted environment", "path", path, "bytes", env.SizeBytes)
	return Outcome{Path: path, FreedBytes: env.SizeBytes, Bucket: env.Bucket, HasManifest: env.HasManifest}
}

// checkTarget confirms path is still a real directory.
func checkTarget(path string) *DeletionError {
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &DeletionError{Path: path, Reason: "path vanished"}
	case err != nil:
		return &DeletionError{Path: path, Reason: "cannot stat", Err: err}
	case info.Mode()&fs.ModeSymlink != 0:
		return &DeletionError{Path: path, Reason: "path is now a symlink"}
	case !info.IsDir():
		return &DeletionError{Path: path, Reason: "not a directory"}
	}
	return nil
}

func (d *Deleter) fail(st *store.Store, env scanner.Environment, derr *DeletionError) Outcome {
	d.log.Warn("deletion failed", "path", derr.Path, "reason", derr.Reason, "err", derr.Err)
	_ = st.Fail(derr.Path, derr.Error())
	return Outcome{Path: derr.Path, Bucket: env.Bucket, HasManifest: env.HasManifest, Err: derr}
}

// FreedBytes sums the bytes reclaimed by successful outcomes.
func FreedBytes(outcomes []Outcome) int64 {
	var n int64
	for _, o := range outcomes {
		if o.OK() {
			n += o.FreedBytes
		}
	}
	return n
}

// Failures returns the outcomes that carry an error.
func Failures(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Unmanaged returns the environments with no dependency manifest next to
// them, i.e. the ones that cannot be recreated from a file.
func Unmanaged(envs []scanner.Environment) []scanner.Environment {
	var out []scanner.Environment
	for _, e := range envs {
		if !e.HasManifest {
			out = append(out, e)
		}
	}
	return out
}
