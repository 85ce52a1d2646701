package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	statusBarStyle = lipgloss.NewStyle().
			Background(colorSubtle).
			Foreground(colorText).
			Padding(0, 1)

	headerBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorPrimary).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	markedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	dangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger).
			Background(colorDangerBg).
			Padding(0, 1)

	tableBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	detailsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(colorDanger).
			Padding(1, 2)
)
