package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// makeEnv creates a virtual environment at dir identified by kind, holding a
// payload file of size bytes, with every file's mtime set to mtime.
func makeEnv(t *testing.T, dir string, kind Kind, size int64, mtime time.Time) {
	t.Helper()
	mustMkdir(t, dir)
	switch kind {
	case KindPyvenvCfg:
		mustWrite(t, filepath.Join(dir, "pyvenv.cfg"), "home = /usr/bin\nversion = 3.12.1\n")
	case KindPosixActivate:
		mustMkdir(t, filepath.Join(dir, "bin"))
		mustWrite(t, filepath.Join(dir, "bin", "activate"), "")
	case KindWindowsActivate:
		mustMkdir(t, filepath.Join(dir, "Scripts"))
		mustWrite(t, filepath.Join(dir, "Scripts", "activate.bat"), "")
	}
	payload := filepath.Join(dir, "lib", "payload.bin")
	mustMkdir(t, filepath.Dir(payload))
	f, err := os.Create(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	f.Close()
	touchTree(t, dir, mtime)
}

func touchTree(t *testing.T, dir string, mtime time.Time) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, mtime, mtime)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
