package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/noisepanel/internal/version"
)

// Application branding constants
const (
	AppName   = "NOISEPANEL"
	GitHubURL = "github.com/muurk/noisepanel"
)

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72  // Minimum supported terminal width
	MaxContentWidth  = 120 // Maximum content width before capping
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF0000") // Red

	TextColor      = lipgloss.Color("#FFFFFF")
	SubtleColor    = lipgloss.Color("#626262")
	BorderColor    = lipgloss.Color("#7D56F4")
	HighlightColor = lipgloss.Color("#43BF6D")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	MenuItemStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(TextColor)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(HighlightColor).
				Bold(true)

	DisabledItemStyle = lipgloss.NewStyle().
				PaddingLeft(4).
				Foreground(SubtleColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 2)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 2)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(SubtleColor).
				Padding(0, 2)

	// Field being edited inline
	ExpandedFieldStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Background(lipgloss.Color("236"))
)

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderSubtitle renders a subtitle with consistent styling
func RenderSubtitle(text string) string {
	return SubtitleStyle.Render(text)
}

// RenderMenuItem renders a menu item with selection indicator
func RenderMenuItem(text string, selected bool) string {
	if selected {
		return SelectedMenuItemStyle.Render("→ " + text)
	}
	return MenuItemStyle.Render("  " + text)
}

// RenderError renders an error message
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// BuildHeaderContent creates header content with app name and project URL
func BuildHeaderContent(device string) string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + version.Version)

	right := GitHubURL
	if device != "" {
		right = device
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ",
		lipgloss.NewStyle().Foreground(SubtleColor).Render(right))
}

// RenderApplicationContainer wraps every screen in the same full-screen
// frame: header, content and a footer carrying the screen's help text.
// A zero width or height (before the first WindowSizeMsg) renders unframed
// at the minimum width.
func RenderApplicationContainer(device, content, footerText string, terminalWidth, terminalHeight int) string {
	if terminalWidth < MinTerminalWidth {
		terminalWidth = MinTerminalWidth
	}

	styledHeader := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1).
		Render(BuildHeaderContent(device))

	styledFooter := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1).
		Render(lipgloss.NewStyle().Foreground(SubtleColor).Render(footerText))

	styledContent := lipgloss.NewStyle().
		Width(terminalWidth - 4).
		Render(content)

	inner := lipgloss.JoinVertical(lipgloss.Left, styledHeader, styledContent, styledFooter)

	border := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		AlignVertical(lipgloss.Top)
	if terminalHeight <= 2 {
		return border.Render(inner)
	}

	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Left,
		lipgloss.Top,
		border.Height(terminalHeight-2).Render(inner),
	)
}

// RenderTabs renders the tab bar with the active tab highlighted
func RenderTabs(names []string, active int) string {
	tabs := make([]string, len(names))
	for i, n := range names {
		if i == active {
			tabs[i] = ActiveTabStyle.Render(n)
		} else {
			tabs[i] = InactiveTabStyle.Render(n)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// ContentWidth caps the usable content width for a terminal width
func ContentWidth(terminalWidth int) int {
	w := terminalWidth - 6
	if w < MinTerminalWidth-6 {
		w = MinTerminalWidth - 6
	}
	if w > MaxContentWidth-6 {
		w = MaxContentWidth - 6
	}
	return w
}
