package session

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	account   lipgloss.Style
	balance   lipgloss.Style
	warning   lipgloss.Style
	pending   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	stateOK   lipgloss.Style
	stateBusy lipgloss.Style
	stateOff  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		value:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		account:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		balance:   lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		stateOK:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		stateBusy: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		stateOff:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244")),
	}
}
