package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/store"
	"github.com/lu-zhengda/venvkiller/internal/trash"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testEnv creates a real directory so deletion can run against it.
func testEnv(t *testing.T, name string, size int64, days int, manifest bool) scanner.Environment {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name, ".venv")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte("version = 3.11.4\n"), 0o644))

	modified := testNow.Add(-time.Duration(days) * 24 * time.Hour)
	env := scanner.Environment{
		Path:         dir,
		SizeBytes:    size,
		LastModified: modified,
		Bucket:       scanner.Classify(modified, testNow, scanner.DefaultThresholds()),
		HasManifest:  manifest,
		Kind:         scanner.KindPyvenvCfg,
		Info:         scanner.Info{PythonVersion: "3.11.4", Packages: 12},
	}
	if manifest {
		env.Info.Manifests = []string{"requirements.txt"}
	}
	return env
}

func newTestModel(t *testing.T, confirm bool, envs ...scanner.Environment) (Model, *engine.Session) {
	t.Helper()
	st := store.New()
	for _, e := range envs {
		require.NoError(t, st.Add(e))
	}
	s := engine.NewSession(st, engine.RemoverFunc(trash.PermanentDelete), nil)
	m := New(s, Options{
		Scan:    scanner.Options{Root: t.TempDir(), Thresholds: scanner.DefaultThresholds()},
		Confirm: confirm,
		Method:  string(trash.Permanent),
	})
	m.now = func() time.Time { return testNow }
	m.updateLayout(120, 40)
	m.refresh()
	return m, s
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestNew(t *testing.T) {
	small := testEnv(t, "small", 10<<20, 2, true)
	big := testEnv(t, "big", 50<<20, 200, true)

	m, _ := newTestModel(t, true, small, big)

	require.Len(t, m.rows, 2)
	assert.Equal(t, big.Path, m.rows[0].Path, "largest first by default")
	assert.Equal(t, sortBySize, m.sortMode)
	assert.True(t, m.showDetails)
	assert.False(t, m.confirm.active())
}

func TestModelMarking(t *testing.T) {
	recent := testEnv(t, "recent", 30<<20, 2, true)
	old := testEnv(t, "old", 20<<20, 30, true)
	veryOld := testEnv(t, "very-old", 10<<20, 200, true)

	t.Run("space toggles the row under the cursor", func(t *testing.T) {
		m, s := newTestModel(t, true, recent, old, veryOld)

		m, _ = press(m, "space")
		got, _ := s.Store().Get(recent.Path)
		assert.True(t, got.Marked)
		assert.True(t, m.rows[0].Marked)

		m, _ = press(m, "space")
		got, _ = s.Store().Get(recent.Path)
		assert.False(t, got.Marked)
		assert.Equal(t, 0, s.Store().Totals().MarkedCount)
	})

	t.Run("cursor movement", func(t *testing.T) {
		m, s := newTestModel(t, true, recent, old, veryOld)

		m, _ = press(m, "down", "space")
		got, _ := s.Store().Get(old.Path)
		assert.True(t, got.Marked)
		assert.Equal(t, 1, m.table.Cursor())

		m, _ = press(m, "up")
		assert.Equal(t, 0, m.table.Cursor())
	})

	t.Run("mark old", func(t *testing.T) {
		m, s := newTestModel(t, true, recent, old, veryOld)

		m, _ = press(m, "o")
		totals := s.Store().Totals()
		assert.Equal(t, 2, totals.MarkedCount)
		assert.Equal(t, old.SizeBytes+veryOld.SizeBytes, totals.MarkedBytes)
		got, _ := s.Store().Get(recent.Path)
		assert.False(t, got.Marked)
		assert.Contains(t, m.lastEvent, "Marked 2")
	})

	t.Run("mark all and clear", func(t *testing.T) {
		m, s := newTestModel(t, true, recent, old, veryOld)

		m, _ = press(m, "a")
		assert.Equal(t, 3, s.Store().Totals().MarkedCount)

		m, _ = press(m, "A")
		assert.Equal(t, 0, s.Store().Totals().MarkedCount)
		assert.Contains(t, m.lastEvent, "Cleared 3")
	})
}

func TestModelSort(t *testing.T) {
	a := testEnv(t, "aaa", 10<<20, 5, true)
	b := testEnv(t, "bbb", 30<<20, 300, true)
	c := testEnv(t, "ccc", 20<<20, 50, true)

	m, _ := newTestModel(t, true, a, b, c)
	assert.Equal(t, []string{b.Path, c.Path, a.Path}, rowPaths(m))

	m, _ = press(m, "s")
	assert.Equal(t, sortByAge, m.sortMode)
	assert.Equal(t, []string{b.Path, c.Path, a.Path}, rowPaths(m), "oldest first")

	m, _ = press(m, "s")
	assert.Equal(t, sortByPath, m.sortMode)
	sorted := rowPaths(m)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1], sorted[i])
	}

	m, _ = press(m, "s")
	assert.Equal(t, sortBySize, m.sortMode)
}

func TestModelSortKeepsCursor(t *testing.T) {
	a := testEnv(t, "aaa", 10<<20, 5, true)
	b := testEnv(t, "bbb", 30<<20, 300, true)

	m, _ := newTestModel(t, true, a, b)
	m, _ = press(m, "down")
	env, ok := m.selected()
	require.True(t, ok)
	require.Equal(t, a.Path, env.Path)

	m, _ = press(m, "s", "s")
	env, _ = m.selected()
	assert.Equal(t, a.Path, env.Path)
}

func rowPaths(m Model) []string {
	paths := make([]string, len(m.rows))
	for i, r := range m.rows {
		paths[i] = r.Path
	}
	return paths
}

func TestModelDeleteNothingMarked(t *testing.T) {
	m, _ := newTestModel(t, true, testEnv(t, "p", 1<<20, 200, true))

	m, cmd := press(m, "d")
	assert.Nil(t, cmd)
	assert.False(t, m.confirm.active())
	assert.Equal(t, "Nothing marked", m.lastEvent)
}

func TestModelDeleteCancelled(t *testing.T) {
	env := testEnv(t, "p", 1<<20, 200, true)
	m, s := newTestModel(t, true, env)

	m, _ = press(m, "space", "d")
	require.Equal(t, confirmBatch, m.confirm.stage)
	assert.Contains(t, m.View(), "CONFIRM DELETION")
	assert.Contains(t, m.View(), "permanently deleted")

	m, _ = press(m, "n")
	assert.False(t, m.confirm.active())
	assert.Equal(t, "Deletion cancelled", m.lastEvent)

	got, ok := s.Store().Get(env.Path)
	require.True(t, ok)
	assert.True(t, got.Marked)
	assert.DirExists(t, env.Path)
}

func TestModelDeleteUnmanagedNeedsSecondConfirmation(t *testing.T) {
	managed := testEnv(t, "managed", 2<<20, 200, true)
	unmanaged := testEnv(t, "unmanaged", 1<<20, 200, false)
	m, s := newTestModel(t, true, managed, unmanaged)

	m, _ = press(m, "a", "d")
	require.Equal(t, confirmBatch, m.confirm.stage)
	require.Len(t, m.confirm.unmanaged, 1)

	m, cmd := press(m, "y")
	assert.Equal(t, confirmUnmanaged, m.confirm.stage)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "NO DEPENDENCY MANIFEST")
	assert.False(t, m.deleting)

	m, cmd = press(m, "y")
	assert.False(t, m.confirm.active())
	assert.True(t, m.deleting)
	assert.NotNil(t, cmd)

	msg := deleteMarkedCmd(context.Background(), s, nil)()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.deleting)
	assert.Contains(t, m.lastEvent, "Deleted 2 environment(s)")
	assert.Empty(t, m.rows)
	assert.NoDirExists(t, managed.Path)
	assert.NoDirExists(t, unmanaged.Path)
	assert.Equal(t, int64(3<<20), s.Summary().FreedBytes)
}

func TestModelDeleteWithoutConfirm(t *testing.T) {
	env := testEnv(t, "p", 1<<20, 200, false)
	m, _ := newTestModel(t, false, env)

	m, cmd := press(m, "space", "d")
	assert.False(t, m.confirm.active(), "no dialog when confirmation is off")
	assert.True(t, m.deleting)
	assert.NotNil(t, cmd)
}

func TestModelDeleteRefusedWhileScanning(t *testing.T) {
	env := testEnv(t, "p", 1<<20, 200, true)
	m, s := newTestModel(t, true, env)
	require.NoError(t, s.Store().Mark(env.Path, true))
	m.scan.Status = engine.ScanRunning

	m, cmd := press(m, "d")
	assert.Nil(t, cmd)
	assert.False(t, m.confirm.active())
	assert.Contains(t, m.lastEvent, "unavailable while scanning")
}

func TestModelDeleteFailureKeepsRow(t *testing.T) {
	env := testEnv(t, "p", 1<<20, 200, true)
	st := store.New()
	require.NoError(t, st.Add(env))
	failing := engine.RemoverFunc(func(string) error { return errors.New("device busy") })
	s := engine.NewSession(st, failing, nil)
	m := New(s, Options{Scan: scanner.Options{Root: t.TempDir()}, Confirm: false})
	m.now = func() time.Time { return testNow }
	m.refresh()

	m, _ = press(m, "space", "d")
	next, _ := m.Update(deleteMarkedCmd(context.Background(), s, nil)())
	m = next.(Model)

	require.Len(t, m.rows, 1)
	assert.False(t, m.rows[0].Marked)
	assert.NotEmpty(t, m.rows[0].LastError)
	assert.Contains(t, m.lastEvent, "1 failed")
	assert.Contains(t, m.detailsView(), "Last error")
}

func TestModelDetails(t *testing.T) {
	env := testEnv(t, "p", 1<<20, 200, false)
	env.Partial = true
	m, _ := newTestModel(t, true, env)

	details := m.detailsView()
	assert.Contains(t, details, "3.11.4")
	assert.Contains(t, details, "none found")
	assert.Contains(t, details, "partial")
	assert.Contains(t, details, "very-old")

	m, _ = press(m, "i")
	assert.False(t, m.showDetails)
	assert.NotContains(t, m.View(), "Packages:")
}

func TestModelQuit(t *testing.T) {
	m, _ := newTestModel(t, true)

	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err())
}

func TestModelQuitWaitsForDeletion(t *testing.T) {
	a := testEnv(t, "a", 1<<20, 200, true)
	b := testEnv(t, "b", 2<<20, 200, true)
	st := store.New()
	require.NoError(t, st.Add(a))
	require.NoError(t, st.Add(b))

	started := make(chan string, 1)
	release := make(chan struct{})
	gated := engine.RemoverFunc(func(path string) error {
		started <- path
		<-release
		return trash.PermanentDelete(path)
	})
	s := engine.NewSession(st, gated, nil)
	m := New(s, Options{Scan: scanner.Options{Root: t.TempDir()}, Confirm: false})
	m.now = func() time.Time { return testNow }
	m.refresh()

	m, _ = press(m, "a", "d")
	require.True(t, m.deleting)

	done := make(chan tea.Msg, 1)
	go func() { done <- deleteMarkedCmd(m.ctx, s, nil)() }()
	removing := <-started

	m, cmd := press(m, "q")
	assert.Nil(t, cmd, "quit must wait for the running deletion")
	assert.True(t, m.quitting)
	assert.Error(t, m.ctx.Err())
	assert.Contains(t, m.View(), "Finishing the current deletion")

	m, cmd = press(m, "ctrl+c")
	assert.Nil(t, cmd)

	close(release)
	next, cmd := m.Update(<-done)
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, m.deleting)

	outcomes := s.Outcomes()
	require.Len(t, outcomes, 1, "only the in-flight environment is processed")
	assert.Equal(t, removing, outcomes[0].Path)
	assert.True(t, outcomes[0].OK())
	_, err := os.Stat(removing)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, s.Store().Totals().MarkedCount, "the rest of the batch stays marked")
}

func TestModelScanStartError(t *testing.T) {
	m, _ := newTestModel(t, true)

	next, _ := m.Update(scanStartedMsg{err: &scanner.ConfigError{Field: "root", Value: "/nope", Reason: "does not exist"}})
	m = next.(Model)
	assert.Error(t, m.err)
	assert.Contains(t, m.lastEvent, "Scan failed")
	assert.Contains(t, m.View(), "Error:")
}

func TestModelScan(t *testing.T) {
	root := t.TempDir()
	venv := filepath.Join(root, "proj", ".venv")
	require.NoError(t, os.MkdirAll(venv, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "pyvenv.cfg"), []byte("version = 3.12.1\n"), 0o644))

	s := engine.NewSession(store.New(), engine.RemoverFunc(trash.PermanentDelete), nil)
	m := New(s, Options{Scan: scanner.Options{Root: root, Thresholds: scanner.DefaultThresholds()}, Confirm: true})

	msg := startScanCmd(context.Background(), s, m.opts.Scan)()
	started, ok := msg.(scanStartedMsg)
	require.True(t, ok)
	require.NoError(t, started.err)
	s.Wait()

	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	require.Len(t, m.rows, 1)
	assert.Equal(t, venv, m.rows[0].Path)
	assert.Equal(t, engine.ScanDone, m.scan.Status)
}
