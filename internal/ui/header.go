package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled header value; order is preserved
type Param struct {
	Key   string
	Value string
}

// Header represents a command header with title, command, and parameters.
// Used at the start of one-shot commands to show what is being talked to.
type Header struct {
	Title   string  // e.g., "WI-FI CONNECT"
	Command string  // e.g., "noisepanel wifi connect"
	Params  []Param // e.g., {"Device", "http://192.168.4.1:80"}
	Width   int     // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) == 0 {
		return h.border(width).Render(topSection)
	}

	dividerWidth := max(width-6, 10)
	divider := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat("─", dividerWidth))

	keyWidth := 0
	for _, p := range h.Params {
		keyWidth = max(keyWidth, len(p.Key)+1)
	}

	paramLines := make([]string, 0, len(h.Params))
	for _, p := range h.Params {
		key := HeaderParamKeyStyle.Width(keyWidth + 3).Render(p.Key + ":")
		paramLines = append(paramLines, key+" "+HeaderParamValueStyle.Render(p.Value))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	return h.border(width).Render(content)
}

func (h *Header) border(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
