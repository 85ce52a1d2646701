package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Kind records which marker identified a directory as a virtual environment.
type Kind int

const (
	KindUnknown Kind = iota
	KindPyvenvCfg
	KindPosixActivate
	KindWindowsActivate
)

func (k Kind) String() string {
	switch k {
	case KindPyvenvCfg:
		return "pyvenv.cfg"
	case KindPosixActivate:
		return "bin/activate"
	case KindWindowsActivate:
		return "Scripts/activate.bat"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Detect reports whether dir, whose direct children are entries, is the
// root of a virtual environment. Only dir's children and the activate
// script inside bin/ or Scripts/ are inspected.
func Detect(dir string, entries []fs.DirEntry) (Kind, bool) {
	var hasBin, hasScripts bool
	for _, e := range entries {
		switch e.Name() {
		case "pyvenv.cfg":
			if !e.IsDir() {
				return KindPyvenvCfg, true
			}
		case "bin":
			hasBin = e.IsDir()
		case "Scripts":
			hasScripts = e.IsDir()
		}
	}
	if hasBin && isFile(filepath.Join(dir, "bin", "activate")) {
		return KindPosixActivate, true
	}
	if hasScripts && isFile(filepath.Join(dir, "Scripts", "activate.bat")) {
		return KindWindowsActivate, true
	}
	return KindUnknown, false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
