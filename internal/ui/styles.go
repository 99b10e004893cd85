package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/muurk/noisepanel/internal/deviceapi"
	"github.com/muurk/noisepanel/internal/poller"
)

// Color palette for one-shot command output
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, ok badges
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, bad badges
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
	InfoColor    = lipgloss.Color("#5FAFFF") // Blue - timestamps
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
)

// Shared styles
var (
	// HeaderTitleStyle is for the command title (e.g., "DEVICE STATUS")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderCommandStyle is for the command path (e.g., "noisepanel status")
	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamKeyStyle is for parameter keys (e.g., "Device:")
	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamValueStyle is for parameter values
	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(18)

	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().
					Foreground(MutedColor).
					Bold(true)

	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)
)

// Result markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// BadgeStyle colours a network or fault badge
func BadgeStyle(b deviceapi.Badge) lipgloss.Style {
	switch b {
	case deviceapi.BadgeOK:
		return lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	case deviceapi.BadgeWarn:
		return lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	case deviceapi.BadgeBad:
		return lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(MutedColor)
	}
}

// SeverityStyle colours a classified log line
func SeverityStyle(s poller.Severity) lipgloss.Style {
	switch s {
	case poller.SeverityError:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	case poller.SeverityWarning:
		return lipgloss.NewStyle().Foreground(WarningColor)
	case poller.SeverityOK:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case poller.SeverityTimestamp:
		return lipgloss.NewStyle().Foreground(InfoColor)
	default:
		return lipgloss.NewStyle().Foreground(TextColor)
	}
}

// RenderLog renders classified log lines, one per line
func RenderLog(lines []poller.LogLine) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = SeverityStyle(l.Severity).Render(l.Text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}
