package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lu-zhengda/venvkiller/internal/utils"
)

const maxWarnings = 500

// DefaultSkipDirs are never descended into.
var DefaultSkipDirs = []string{".git", ".hg", ".svn"}

// Options configure a single scan.
type Options struct {
	Root       string
	Thresholds Thresholds
	// Workers bounds concurrent size measurements. Defaults to 4.
	Workers int
	// MaxDepth limits descent below Root; 0 means unlimited.
	MaxDepth int
	SkipDirs []string
	// Exclude, when set, prunes any directory for which it returns true.
	Exclude func(path string) bool
	// Now fixes the classification instant. Defaults to time.Now at scan start.
	Now    func() time.Time
	Logger *slog.Logger
}

// Scanner walks a directory tree and emits every virtual environment it finds.
type Scanner struct {
	opts Options
	skip map[string]bool
	log  *slog.Logger

	mu       sync.Mutex
	warnings []Warning
	dropped  int

	visited atomic.Int64
	found   atomic.Int64
}

func New(opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, name := range opts.SkipDirs {
		skip[name] = true
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scanner{opts: opts, skip: skip, log: log}
}

// Scan validates the configuration and starts the walk. A *ConfigError is
// returned, and nothing is scanned, when the root is not a readable
// directory or the thresholds are invalid.
//
// The returned channel yields each environment exactly once, in no
// particular order, and is closed when the scan completes or ctx is done.
func (s *Scanner) Scan(ctx context.Context) (<-chan Environment, error) {
	if err := s.opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	root, entries, err := openRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.warnings, s.dropped = nil, 0
	s.mu.Unlock()
	s.visited.Store(0)
	s.found.Store(0)

	now := time.Now()
	if s.opts.Now != nil {
		now = s.opts.Now()
	}

	out := make(chan Environment)
	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(s.opts.Workers)
		s.walk(ctx, &g, root, entries, 0, func(path string, kind Kind) {
			g.Go(func() error {
				env, ok := s.measure(ctx, path, kind, now)
				if !ok {
					return nil
				}
				select {
				case out <- env:
					s.found.Add(1)
				case <-ctx.Done():
				}
				return nil
			})
		})
		g.Wait()
		s.log.Debug("scan finished", "root", root, "visited", s.visited.Load(), "found", s.found.Load())
	}()
	return out, nil
}

// Validate performs the checks Scan runs before traversal without
// starting one.
func (o Options) Validate() error {
	if err := o.Thresholds.Validate(); err != nil {
		return err
	}
	_, _, err := openRoot(o.Root)
	return err
}

func openRoot(root string) (string, []fs.DirEntry, error) {
	if root == "" {
		return "", nil, &ConfigError{Field: "root", Reason: "no directory given"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", nil, &ConfigError{Field: "root", Value: root, Reason: err.Error()}
	}
	info, err := os.Stat(abs)
	if err != nil {
		reason := "cannot be accessed"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "does not exist"
		}
		return "", nil, &ConfigError{Field: "root", Value: root, Reason: reason}
	}
	if !info.IsDir() {
		return "", nil, &ConfigError{Field: "root", Value: root, Reason: "not a directory"}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", nil, &ConfigError{Field: "root", Value: root, Reason: "not readable"}
	}
	return abs, entries, nil
}

// walk visits dir depth-first. Matched environments are handed to found
// and never descended; symlinked directories are never followed.
func (s *Scanner) walk(ctx context.Context, g *errgroup.Group, dir string, entries []fs.DirEntry, depth int, found func(string, Kind)) {
	if ctx.Err() != nil {
		return
	}
	s.visited.Add(1)

	if kind, ok := Detect(dir, entries); ok {
		found(dir, kind)
		return
	}
	if s.opts.MaxDepth > 0 && depth >= s.opts.MaxDepth {
		return
	}

	for _, e := range entries {
		// DirEntry.IsDir is false for symlinks, so links are never followed.
		if !e.IsDir() || s.skip[e.Name()] {
			continue
		}
		child := filepath.Join(dir, e.Name())
		if s.opts.Exclude != nil && s.opts.Exclude(child) {
			continue
		}
		children, err := os.ReadDir(child)
		if err != nil {
			s.warn(child, err)
			continue
		}
		s.walk(ctx, g, child, children, depth+1, found)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scanner) measure(ctx context.Context, path string, kind Kind, now time.Time) (Environment, bool) {
	m, err := utils.Measure(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			s.warn(path, err)
		}
		return Environment{}, false
	}
	env := Environment{
		Path:         path,
		SizeBytes:    m.Bytes,
		LastModified: m.LastModified,
		Bucket:       Classify(m.LastModified, now, s.opts.Thresholds),
		Kind:         kind,
		Partial:      m.Partial,
		Warnings:     m.Skipped,
		Info:         ReadInfo(path),
	}
	env.HasManifest = len(env.Info.Manifests) > 0
	if m.Partial {
		s.warn(path, errPartial)
	}
	return env, true
}

var errPartial = errors.New("some entries were unreadable; size is a lower bound")

func (s *Scanner) warn(path string, err error) {
	s.log.Debug("scan warning", "path", path, "err", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.warnings) >= maxWarnings {
		s.dropped++
		return
	}
	s.warnings = append(s.warnings, Warning{Path: path, Err: err})
}

// Warnings returns the warnings recorded so far. Safe to call during a scan.
func (s *Scanner) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}

// DroppedWarnings counts warnings discarded after the cap was reached.
func (s *Scanner) DroppedWarnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Visited returns the number of directories inspected so far.
func (s *Scanner) Visited() int64 {
	return s.visited.Load()
}

// Found returns the number of environments emitted so far.
func (s *Scanner) Found() int64 {
	return s.found.Load()
}
