package tui

import "github.com/charmbracelet/lipgloss"

// asfa palette.
var (
	colorPrimary   = lipgloss.Color("#0EA5A4")
	colorSecondary = lipgloss.Color("#38BDF8")
	colorSuccess   = lipgloss.Color("#22C55E")
	colorWarning   = lipgloss.Color("#EAB308")
	colorError     = lipgloss.Color("#F43F5E")
	colorMuted     = lipgloss.Color("#64748B")
	colorText      = lipgloss.Color("#CBD5E1")
	colorHighlight = lipgloss.Color("#ECFEFF")
)

// Text.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorSecondary).MarginBottom(1)
	categoryStyle = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true).MarginTop(1)
	normalStyle   = lipgloss.NewStyle().Foreground(colorText)
	selectedStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	secretStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)
)

// Dashboard.
var (
	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
	activeTabStyle   = lipgloss.NewStyle().Foreground(colorHighlight).Background(colorPrimary).Bold(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)

	statusRunning = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	statusStopped = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	statusSkipped = lipgloss.NewStyle().Foreground(colorSecondary)
	statusUnknown = lipgloss.NewStyle().Foreground(colorWarning)
)

var (
	cursorChar = selectedStyle.Render(">")
	radioOn    = selectedStyle.Render("(*)")
	radioOff   = normalStyle.Render("( )")
)
