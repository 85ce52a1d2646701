package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// detailsHeight is the number of content lines in the details panel.
const detailsHeight = 5

// maxDialogItems caps how many paths the confirmation dialog lists.
const maxDialogItems = 8

func (m Model) View() string {
	if m.confirm.active() {
		return m.confirmView()
	}

	sections := []string{
		m.headerView(),
		tableBoxStyle.Render(m.table.View()),
	}
	if m.showDetails {
		sections = append(sections, m.detailsView())
	}
	sections = append(sections, m.statusView(), m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := renderHeader(m.opts.Scan.Root)
	t := m.opts.Scan.Thresholds
	legend := fmt.Sprintf("%s ≤ %dd  %s ≤ %dd  %s older",
		bucketStyle(scanner.Recent).Render("recent"), t.RecentDays,
		bucketStyle(scanner.Old).Render("old"), t.OldDays,
		bucketStyle(scanner.VeryOld).Render("very-old"))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", dimStyle.Render(legend))
}

// statusView is the stats line plus, while busy, the scan or delete progress.
func (m Model) statusView() string {
	totals := m.session.Store().Totals()
	summary := m.session.Summary()

	if m.scanning() {
		line := fmt.Sprintf("%s Scanning… visited %d · found %d (%s) · %s",
			m.spinner.View(), m.scan.Visited, totals.Count,
			utils.FormatSize(totals.TotalBytes), m.scan.Elapsed.Truncate(100*time.Millisecond))
		return statusBarStyle.Render(line)
	}

	ratio := 0.0
	if totals.TotalBytes > 0 {
		ratio = float64(totals.MarkedBytes) / float64(totals.TotalBytes)
	}
	parts := []string{
		fmt.Sprintf("Found: %s in %d", utils.FormatSize(totals.TotalBytes), totals.Count),
		fmt.Sprintf("Marked: %s in %d %s", utils.FormatSize(totals.MarkedBytes), totals.MarkedCount, renderRatioBar(ratio, 10)),
		fmt.Sprintf("Saved: %s", utils.FormatSize(summary.FreedBytes)),
		fmt.Sprintf("Sort: %s", m.sortMode),
	}
	if m.scan.Elapsed > 0 {
		parts = append(parts, fmt.Sprintf("Scan: %s (%s)", m.scan.Elapsed.Truncate(10*time.Millisecond), m.scan.Status))
	}
	if n := len(m.scan.Warnings) + m.scan.Dropped; n > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("Warnings: %d", n)))
	}
	lines := []string{statusBarStyle.Render(strings.Join(parts, " · "))}

	if m.deleting {
		percent := 0.0
		if m.deleteTotal > 0 {
			percent = float64(m.deleteDone) / float64(m.deleteTotal)
		}
		lines = append(lines,
			fmt.Sprintf("%s Deleting %d/%d", m.spinner.View(), m.deleteDone, m.deleteTotal),
			m.progress.ViewAs(percent))
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) footerView() string {
	hints := m.help.View(m.keys)
	if m.lastEvent == "" {
		return renderFooter(hints)
	}
	return lipgloss.JoinVertical(lipgloss.Left, dimStyle.Render(" "+m.lastEvent), renderFooter(hints))
}

// detailsView describes the environment under the cursor.
func (m Model) detailsView() string {
	env, ok := m.selected()
	if !ok {
		lines := []string{dimStyle.Render("No environment selected")}
		for len(lines) < detailsHeight {
			lines = append(lines, "")
		}
		return detailsBoxStyle.Render(strings.Join(lines, "\n"))
	}

	python := env.Info.PythonVersion
	if python == "" {
		python = "unknown"
	}
	manifest := successStyle.Render("yes") + " (" + strings.Join(env.Info.Manifests, ", ") + ")"
	if !env.HasManifest {
		manifest = warnStyle.Render("none found")
	}
	size := utils.FormatSize(env.SizeBytes)
	if env.Partial {
		size += warnStyle.Render(" (partial: some files were unreadable)")
	}

	lines := []string{
		titleStyle.Render(env.Path),
		fmt.Sprintf("Size: %s   Modified: %s   Age: %s",
			size, utils.FormatAge(env.LastModified, m.now()), bucketStyle(env.Bucket).Render(env.Bucket.String())),
		fmt.Sprintf("Python: %s   Packages: %d   Marker: %s", python, env.Info.Packages, env.Kind),
		"Manifest: " + manifest,
	}
	switch {
	case env.LastError != "":
		lines = append(lines, errorStyle.Render("Last error: "+env.LastError))
	case env.Marked:
		lines = append(lines, markedStyle.Render("Marked for deletion"))
	default:
		lines = append(lines, "")
	}
	return detailsBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) confirmView() string {
	c := m.confirm
	var b strings.Builder

	if c.stage == confirmUnmanaged {
		b.WriteString(dangerStyle.Render(" NO DEPENDENCY MANIFEST ") + "\n\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d of the marked environments have no requirements.txt, pyproject.toml, poetry.lock or Pipfile next to them.", len(c.unmanaged))) + "\n")
		b.WriteString("They may be hard to recreate:\n\n")
		writeEnvList(&b, c.unmanaged)
		b.WriteString("\n  Delete them anyway?\n")
		b.WriteString(helpStyle.Render("  y delete all | n cancel"))
		return dialogStyle.Render(b.String())
	}

	b.WriteString(dangerStyle.Render(" CONFIRM DELETION ") + "\n\n")
	writeEnvList(&b, c.targets)
	b.WriteString("\n")
	if len(c.unmanaged) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  WARNING: %d environment(s) have no dependency manifest.", len(c.unmanaged))) + "\n\n")
	}
	b.WriteString(fmt.Sprintf("  %d environments | %s | will be %s\n", len(c.targets), utils.FormatSize(c.bytes), m.methodLabel()))
	b.WriteString(helpStyle.Render("  y confirm | n cancel"))
	return dialogStyle.Render(b.String())
}

func writeEnvList(b *strings.Builder, envs []scanner.Environment) {
	for i, e := range envs {
		if i == maxDialogItems {
			fmt.Fprintf(b, "  … and %d more\n", len(envs)-maxDialogItems)
			break
		}
		fmt.Fprintf(b, "  %s (%s, %s)\n",
			utils.TruncatePath(e.Path, 50), utils.FormatSize(e.SizeBytes), bucketStyle(e.Bucket).Render(e.Bucket.String()))
	}
}
