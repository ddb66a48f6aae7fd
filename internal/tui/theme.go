package tui

import "github.com/charmbracelet/lipgloss"

type uiTheme struct {
	root          lipgloss.Style
	header        lipgloss.Style
	panel         lipgloss.Style
	panelTitle    lipgloss.Style
	footer        lipgloss.Style
	status        lipgloss.Style
	errorStatus   lipgloss.Style
	inputPanel    lipgloss.Style
	helpText      lipgloss.Style
	badge         lipgloss.Style
	badgeMuted    lipgloss.Style
	human         lipgloss.Style
	agent         lipgloss.Style
	replyHint     lipgloss.Style
	pending       lipgloss.Style
	failed        lipgloss.Style
	roundHeader   lipgloss.Style
	progressFill  lipgloss.Style
	progressEmpty lipgloss.Style
	dropdown      lipgloss.Style
	dropdownItem  lipgloss.Style
	dropdownPick  lipgloss.Style
	pickerFrame   lipgloss.Style
	pickerTitle   lipgloss.Style
	pickerOption  lipgloss.Style
	pickerSelect  lipgloss.Style
	pickerMuted   lipgloss.Style
	accent        lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	gold := lipgloss.Color("#ffd166")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	ink := lipgloss.Color("#22062f")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText:   lipgloss.NewStyle().Foreground(muted),
		badge:      lipgloss.NewStyle().Background(pink).Foreground(ink).Bold(true).Padding(0, 1),
		badgeMuted: lipgloss.NewStyle().Background(lipgloss.Color("#2a184a")).Foreground(muted).Padding(0, 1),
		human:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		agent:      lipgloss.NewStyle().Foreground(pink).Bold(true),
		replyHint:  lipgloss.NewStyle().Foreground(muted).Italic(true),
		pending:    lipgloss.NewStyle().Foreground(gold),
		failed:     lipgloss.NewStyle().Foreground(pink).Bold(true),
		roundHeader: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true).
			Underline(true),
		progressFill:  lipgloss.NewStyle().Foreground(mint),
		progressEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("#3b2a66")),
		dropdown: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		dropdownItem: lipgloss.NewStyle().Foreground(text),
		dropdownPick: lipgloss.NewStyle().
			Foreground(ink).
			Background(pink).
			Bold(true),
		pickerFrame: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(pink).
			Padding(1, 2),
		pickerTitle: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),
		pickerOption: lipgloss.NewStyle().
			Foreground(text),
		pickerSelect: lipgloss.NewStyle().
			Foreground(ink).
			Background(pink).
			Bold(true).
			Padding(0, 1),
		pickerMuted: lipgloss.NewStyle().Foreground(muted),
		accent:      lipgloss.NewStyle().Foreground(mint).Bold(true),
	}
}
