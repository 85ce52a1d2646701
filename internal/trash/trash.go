package trash

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Method selects how an environment is removed from disk.
type Method string

const (
	Permanent Method = "permanent"
	Trash     Method = "trash"
)

var ErrUnsupported = errors.New("moving to trash is not supported on this platform")

// ParseMethod accepts "permanent" or "trash"; the empty string means permanent.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Permanent:
		return Permanent, nil
	case Trash:
		return Trash, nil
	}
	return "", fmt.Errorf("unknown delete method %q (want permanent or trash)", s)
}

// Remover returns the removal function for m.
func (m Method) Remover() func(path string) error {
	if m == Trash {
		return MoveToTrash
	}
	return PermanentDelete
}

func MoveToTrash(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, absPath)
		cmd = exec.Command("osascript", "-e", script)
	case "linux", "freebsd", "openbsd", "netbsd":
		gio, err := exec.LookPath("gio")
		if err != nil {
			return ErrUnsupported
		}
		cmd = exec.Command(gio, "trash", absPath)
	default:
		return ErrUnsupported
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to trash %s: %w (%s)", path, err, string(out))
	}
	return nil
}

// PermanentDelete removes path and everything below it. Symlinks inside
// the tree are removed, never followed.
func PermanentDelete(path string) error {
	return os.RemoveAll(path)
}
