//go:build unix

package cli

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// diskFree returns the bytes available to unprivileged users on the
// filesystem holding path.
func diskFree(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
