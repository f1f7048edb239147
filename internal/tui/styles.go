package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4")).
			Padding(0, 1)

	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	filterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	rowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14"))
	iconStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Width(4)
	refStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	savedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
