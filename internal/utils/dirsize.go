package utils

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Measurement is the result of walking a directory tree once.
type Measurement struct {
	Bytes        int64
	LastModified time.Time
	// Partial is set when some entries could not be read, making Bytes a lower bound.
	Partial bool
	Skipped []string
}

// maxSkipped bounds how many unreadable paths a single measurement remembers.
const maxSkipped = 50

// Measure walks root and sums the apparent size of every regular file.
// Symlinks are neither followed nor counted. LastModified is the newest
// file mtime, or root's own mtime when no file could be read.
// ctx is checked at every directory boundary.
func Measure(ctx context.Context, root string) (Measurement, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return Measurement{}, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return Measurement{}, fmt.Errorf("%s is not a directory", root)
	}

	var m Measurement
	skip := func(path string) {
		m.Partial = true
		if len(m.Skipped) < maxSkipped {
			m.Skipped = append(m.Skipped, path)
		}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skip(path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			skip(path)
			return nil
		}
		m.Bytes += fi.Size()
		if fi.ModTime().After(m.LastModified) {
			m.LastModified = fi.ModTime()
		}
		return nil
	})
	if err != nil {
		return Measurement{}, err
	}

	if m.LastModified.IsZero() {
		m.LastModified = info.ModTime()
	}
	return m, nil
}
