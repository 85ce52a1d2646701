// Package tui is the interactive front end. It never touches the
// filesystem itself: rows come from the session's Store, marks go back into
// it, and deletion runs through Session.DeleteMarked.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/trash"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

const refreshInterval = 150 * time.Millisecond

// Options configures the TUI.
type Options struct {
	Scan scanner.Options
	// Confirm asks before deleting the marked batch.
	Confirm bool
	// Method is shown in the confirmation dialog ("trash" or "permanent").
	Method string
}

type sortMode int

const (
	sortBySize sortMode = iota
	sortByAge
	sortByPath
)

func (s sortMode) String() string {
	switch s {
	case sortByAge:
		return "age"
	case sortByPath:
		return "path"
	default:
		return "size"
	}
}

func (s sortMode) next() sortMode {
	return (s + 1) % 3
}

type confirmStage int

const (
	confirmNone confirmStage = iota
	confirmBatch
	confirmUnmanaged
)

type confirmState struct {
	stage     confirmStage
	targets   []scanner.Environment
	unmanaged []scanner.Environment
	bytes     int64
}

func (c confirmState) active() bool { return c.stage != confirmNone }

type tickMsg time.Time

type scanStartedMsg struct {
	id  uint64
	err error
}

type deleteProgressMsg struct {
	progress engine.Progress
}

type deleteDoneMsg struct {
	outcomes []engine.Outcome
	err      error
}

type Model struct {
	session *engine.Session
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc

	table    table.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	progress progress.Model

	rows        []scanner.Environment
	version     uint64
	scan        engine.ScanProgress
	sortMode    sortMode
	showDetails bool
	confirm     confirmState

	deleting    bool
	deleteDone  int
	deleteTotal int
	deleteCh    chan engine.Progress
	// quitting defers tea.Quit until the running deletion reports back.
	quitting bool

	lastEvent string
	err       error
	now       func() time.Time

	width  int
	height int
}

// New creates the TUI model around session. The first scan starts in Init.
func New(session *engine.Session, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	t := table.New(
		table.WithColumns(columnsFor(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(styles)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		session:     session,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		table:       t,
		spinner:     sp,
		help:        help.New(),
		keys:        newKeyMap(),
		progress:    progress.New(progress.WithDefaultGradient()),
		showDetails: true,
		now:         time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startScanCmd(m.ctx, m.session, m.opts.Scan), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func startScanCmd(ctx context.Context, s *engine.Session, opts scanner.Options) tea.Cmd {
	return func() tea.Msg {
		id, err := s.Start(ctx, opts)
		return scanStartedMsg{id: id, err: err}
	}
}

// deleteMarkedCmd runs the deletion of the marked batch. Progress is
// forwarded on ch when it is non-nil; ch is closed when deletion ends.
func deleteMarkedCmd(ctx context.Context, s *engine.Session, ch chan engine.Progress) tea.Cmd {
	return func() tea.Msg {
		if ch != nil {
			defer close(ch)
		}
		outcomes, err := s.DeleteMarked(ctx, func(p engine.Progress) {
			if ch == nil {
				return
			}
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		})
		return deleteDoneMsg{outcomes: outcomes, err: err}
	}
}

func listenDeleteProgress(ch chan engine.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return deleteProgressMsg{progress: p}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.updateLayout(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if m.scanning() || m.deleting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case scanStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.lastEvent = fmt.Sprintf("Scan failed: %v", msg.err)
			return m, nil
		}
		m.err = nil
		m.lastEvent = "Scanning " + m.opts.Scan.Root
		m.refresh()
		return m, m.spinner.Tick

	case deleteProgressMsg:
		if !m.deleting {
			return m, nil
		}
		m.deleteDone = msg.progress.Done
		m.deleteTotal = msg.progress.Total
		m.lastEvent = "Deleting " + utils.TruncatePath(msg.progress.Current, 60)
		m.refresh()
		if m.deleteCh != nil {
			return m, listenDeleteProgress(m.deleteCh)
		}
		return m, nil

	case deleteDoneMsg:
		m.applyDeleteDone(msg)
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirm.active() {
			return m.updateConfirm(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd := m.quit()
		return m, cmd
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.ToggleMark):
		m.toggleMark()
	case key.Matches(msg, m.keys.MarkOld):
		n := m.session.Store().MarkWhere(func(e scanner.Environment) bool {
			return e.Bucket >= scanner.Old
		})
		m.lastEvent = fmt.Sprintf("Marked %d old environment(s)", n)
		m.refresh()
	case key.Matches(msg, m.keys.MarkAll):
		n := m.session.Store().MarkWhere(func(scanner.Environment) bool { return true })
		m.lastEvent = fmt.Sprintf("Marked %d environment(s)", n)
		m.refresh()
	case key.Matches(msg, m.keys.ClearMarks):
		m.clearMarks()
	case key.Matches(msg, m.keys.Delete):
		cmd := m.requestDelete()
		return m, cmd
	case key.Matches(msg, m.keys.Sort):
		m.sortMode = m.sortMode.next()
		m.setRows(m.rows)
		m.lastEvent = "Sorted by " + m.sortMode.String()
	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
		m.updateLayout(m.width, m.height)
	case key.Matches(msg, m.keys.StopScan):
		if m.scanning() {
			m.session.Cancel()
			m.lastEvent = "Scan stopped"
		}
	case key.Matches(msg, m.keys.Rescan):
		if m.deleting {
			m.lastEvent = "Wait for the deletion to finish"
			return m, nil
		}
		m.lastEvent = "Rescanning " + m.opts.Scan.Root
		return m, tea.Batch(m.spinner.Tick, startScanCmd(m.ctx, m.session, m.opts.Scan))
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if m.confirm.stage == confirmBatch && len(m.confirm.unmanaged) > 0 {
			m.confirm.stage = confirmUnmanaged
			return m, nil
		}
		m.confirm = confirmState{}
		cmd := m.startDelete()
		return m, cmd
	case "n", "N", "esc", "q":
		m.confirm = confirmState{}
		m.lastEvent = "Deletion cancelled"
	case "ctrl+c":
		m.confirm = confirmState{}
		cmd := m.quit()
		return m, cmd
	}
	return m, nil
}

// quit cancels pending work. While a deletion runs it stops the batch after
// the current environment and quits once the outcome is in.
func (m *Model) quit() tea.Cmd {
	m.cancel()
	if m.deleting {
		m.quitting = true
		m.lastEvent = "Finishing the current deletion before quitting…"
		return nil
	}
	return tea.Quit
}

func (m *Model) toggleMark() {
	env, ok := m.selected()
	if !ok {
		return
	}
	if err := m.session.Store().Toggle(env.Path); err != nil {
		m.lastEvent = err.Error()
		return
	}
	if env.Marked {
		m.lastEvent = "Unmarked " + utils.TruncatePath(env.Path, 60)
	} else {
		m.lastEvent = "Marked " + utils.TruncatePath(env.Path, 60)
	}
	m.refresh()
}

func (m *Model) clearMarks() {
	st := m.session.Store()
	marked := st.Marked()
	for _, e := range marked {
		_ = st.Mark(e.Path, false)
	}
	if len(marked) == 0 {
		m.lastEvent = "Nothing marked"
	} else {
		m.lastEvent = fmt.Sprintf("Cleared %d mark(s)", len(marked))
	}
	m.refresh()
}

// requestDelete opens the confirmation dialog for the marked batch, or
// starts deleting right away when confirmation is off.
func (m *Model) requestDelete() tea.Cmd {
	if m.deleting {
		return nil
	}
	if m.scanning() {
		m.lastEvent = "Deletion is unavailable while scanning (x stops the scan)"
		return nil
	}
	marked := m.session.Store().Marked()
	if len(marked) == 0 {
		m.lastEvent = "Nothing marked"
		return nil
	}
	if !m.opts.Confirm {
		return m.startDelete()
	}

	c := confirmState{stage: confirmBatch, targets: marked}
	for _, e := range marked {
		c.bytes += e.SizeBytes
		if !e.HasManifest {
			c.unmanaged = append(c.unmanaged, e)
		}
	}
	m.confirm = c
	return nil
}

func (m *Model) startDelete() tea.Cmd {
	total := m.session.Store().Totals().MarkedCount
	if total == 0 {
		m.lastEvent = "Nothing marked"
		return nil
	}
	m.deleting = true
	m.deleteDone = 0
	m.deleteTotal = total
	m.deleteCh = make(chan engine.Progress, 1)
	m.lastEvent = fmt.Sprintf("Deleting %d environment(s)…", total)
	return tea.Batch(
		m.spinner.Tick,
		deleteMarkedCmd(m.ctx, m.session, m.deleteCh),
		listenDeleteProgress(m.deleteCh),
	)
}

func (m *Model) applyDeleteDone(msg deleteDoneMsg) {
	m.deleting = false
	m.deleteCh = nil
	m.refresh()

	if msg.err != nil {
		if errors.Is(msg.err, engine.ErrScanRunning) {
			m.lastEvent = "Deletion is unavailable while scanning"
		} else {
			m.lastEvent = fmt.Sprintf("Deletion failed: %v", msg.err)
		}
		return
	}

	var deleted, failed int
	for _, o := range msg.outcomes {
		switch {
		case o.OK():
			deleted++
		case o.Err != nil:
			failed++
		}
	}
	freed := engine.FreedBytes(msg.outcomes)
	m.lastEvent = fmt.Sprintf("Deleted %d environment(s), freed %s", deleted, utils.FormatSize(freed))
	if failed > 0 {
		m.lastEvent += fmt.Sprintf(", %d failed", failed)
	}
}

func (m Model) scanning() bool {
	return m.scan.Status == engine.ScanRunning
}

// refresh pulls the scan progress and, when the Store changed, its rows.
func (m *Model) refresh() {
	m.scan = m.session.Progress()
	v := m.session.Store().Version()
	if v == m.version && m.rows != nil {
		return
	}
	m.version = v
	m.setRows(m.session.Store().List())
}

// setRows sorts envs and rebuilds the table, keeping the cursor on the
// same environment when it is still present.
func (m *Model) setRows(envs []scanner.Environment) {
	current, hadCurrent := m.selected()

	sortEnvironments(envs, m.sortMode)
	m.rows = envs

	rows := make([]table.Row, 0, len(envs))
	now := m.now()
	for _, e := range envs {
		rows = append(rows, m.tableRow(e, now))
	}
	m.table.SetRows(rows)

	if hadCurrent {
		for i, e := range envs {
			if e.Path == current.Path {
				m.table.SetCursor(i)
				return
			}
		}
	}
	if c := m.table.Cursor(); c >= len(envs) {
		m.table.SetCursor(max(len(envs)-1, 0))
	}
}

func (m Model) tableRow(e scanner.Environment, now time.Time) table.Row {
	mark := "[ ]"
	if e.Marked {
		mark = "[x]"
	}
	status := ""
	switch {
	case e.LastError != "":
		status = "error"
	case e.Partial:
		status = "partial"
	case !e.HasManifest:
		status = "no manifest"
	}
	pathWidth := columnsFor(m.width)[1].Width
	return table.Row{
		mark,
		utils.TruncatePath(e.Path, pathWidth),
		utils.FormatSize(e.SizeBytes),
		utils.FormatAge(e.LastModified, now),
		e.Bucket.String(),
		status,
	}
}

// selected returns the environment under the cursor.
func (m Model) selected() (scanner.Environment, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return scanner.Environment{}, false
	}
	return m.rows[idx], true
}

func sortEnvironments(envs []scanner.Environment, mode sortMode) {
	sort.SliceStable(envs, func(i, j int) bool {
		a, b := envs[i], envs[j]
		switch mode {
		case sortByAge:
			if !a.LastModified.Equal(b.LastModified) {
				return a.LastModified.Before(b.LastModified)
			}
		case sortByPath:
			return strings.ToLower(a.Path) < strings.ToLower(b.Path)
		default:
			if a.SizeBytes != b.SizeBytes {
				return a.SizeBytes > b.SizeBytes
			}
		}
		return a.Path < b.Path
	})
}

func columnsFor(width int) []table.Column {
	const (
		markWidth   = 3
		sizeWidth   = 10
		ageWidth    = 16
		bucketWidth = 9
		statusWidth = 11
	)
	pathWidth := max(width-markWidth-sizeWidth-ageWidth-bucketWidth-statusWidth-16, 20)
	return []table.Column{
		{Title: "", Width: markWidth},
		{Title: "Path", Width: pathWidth},
		{Title: "Size", Width: sizeWidth},
		{Title: "Modified", Width: ageWidth},
		{Title: "Age", Width: bucketWidth},
		{Title: "Status", Width: statusWidth},
	}
}

func (m *Model) updateLayout(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	width = max(width, 60)
	height = max(height, 16)
	m.width = width
	m.height = height

	m.table.SetColumns(columnsFor(width))
	m.table.SetWidth(width - 4)

	reserved := lipgloss.Height(m.headerView()) + lipgloss.Height(m.statusView()) +
		lipgloss.Height(m.footerView()) + 4
	if m.showDetails {
		reserved += detailsHeight + 2
	}
	m.table.SetHeight(max(height-reserved, 5))
	m.progress.Width = max(width-30, 20)

	if m.rows != nil {
		m.setRows(m.rows)
	}
}

func (m Model) methodLabel() string {
	if trash.Method(m.opts.Method) == trash.Trash {
		return "moved to Trash (recoverable)"
	}
	return "permanently deleted"
}
