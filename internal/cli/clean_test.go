package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lu-zhengda/venvkiller/internal/config"
	"github.com/lu-zhengda/venvkiller/internal/history"
)

func resetCleanFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		cleanTrash, cleanYes, cleanDryRun, cleanQuiet, cleanIncludeUnmanaged = false, false, false, false, false
		cleanBucket, cleanMinSize = "very-old", ""
	})
}

func cleanFixture(t *testing.T) (root, managed, unmanaged string) {
	t.Helper()
	root = t.TempDir()
	managed = filepath.Join(root, "api", ".venv")
	unmanaged = filepath.Join(root, "scratch", "venv")
	makeVenv(t, managed)
	makeVenv(t, unmanaged)
	if err := os.WriteFile(filepath.Join(root, "api", "requirements.txt"), []byte("requests\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root, managed, unmanaged
}

func runClean(t *testing.T, root string) error {
	t.Helper()
	cleanCmd.SetContext(context.Background())
	var err error
	captureOutput(func() {
		captureStderr(func() {
			err = cleanCmd.RunE(cleanCmd, []string{root})
		})
	})
	return err
}

func TestCleanSkipsUnmanaged(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	withConfig(t, config.Default())
	resetCleanFlags(t)

	root, managed, unmanaged := cleanFixture(t)
	cleanYes, cleanQuiet, cleanBucket = true, true, "all"

	if err := runClean(t, root); err != nil {
		t.Fatalf("clean: %v", err)
	}

	if _, err := os.Stat(managed); !os.IsNotExist(err) {
		t.Errorf("managed environment should be deleted, stat err = %v", err)
	}
	if _, err := os.Stat(unmanaged); err != nil {
		t.Errorf("unmanaged environment should be kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "api", "requirements.txt")); err != nil {
		t.Errorf("project files must survive: %v", err)
	}

	stats := history.New(history.DefaultPath()).Stats()
	if stats.TotalEnvironments != 1 {
		t.Errorf("TotalEnvironments = %d, want 1", stats.TotalEnvironments)
	}
}

func TestCleanIncludeUnmanaged(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	withConfig(t, config.Default())
	resetCleanFlags(t)

	root, managed, unmanaged := cleanFixture(t)
	cleanYes, cleanQuiet, cleanBucket, cleanIncludeUnmanaged = true, true, "all", true

	if err := runClean(t, root); err != nil {
		t.Fatalf("clean: %v", err)
	}
	for _, p := range []string{managed, unmanaged} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be deleted, stat err = %v", p, err)
		}
	}
}

func TestCleanDryRun(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	withConfig(t, config.Default())
	resetCleanFlags(t)

	root, managed, _ := cleanFixture(t)
	cleanDryRun, cleanBucket = true, "all"

	if err := runClean(t, root); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(managed); err != nil {
		t.Errorf("dry run must not delete: %v", err)
	}
	if _, err := os.Stat(history.DefaultPath()); !os.IsNotExist(err) {
		t.Errorf("dry run must not write history, stat err = %v", err)
	}
}

func TestCleanDefaultBucketLeavesRecent(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	withConfig(t, config.Default())
	resetCleanFlags(t)

	root, managed, _ := cleanFixture(t)
	cleanYes, cleanQuiet = true, true

	if err := runClean(t, root); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(managed); err != nil {
		t.Errorf("freshly created environment is recent and must be kept: %v", err)
	}
}
