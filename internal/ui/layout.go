package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/theme"
)

// Layout manages the terminal layout dimensions: a header, a row of view
// tabs, the content area, and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	TabsHeight      int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		TabsHeight:      1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.TabsHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar with a title on the left and the scan
// state on the right.
func (l Layout) RenderHeader(title, scanStatus string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Align(lipgloss.Right).Render(scanStatus)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, fill(theme.HeaderStyle, l.Width, left, right), right)
}

// RenderTabs renders the view names with the active one highlighted.
func (l Layout) RenderTabs(names []string, active int) string {
	tabs := make([]string, len(names))
	for i, name := range names {
		if i == active {
			tabs[i] = theme.ActiveTabStyle.Render(name)
		} else {
			tabs[i] = theme.TabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// RenderStatusBar renders the bottom bar. isErr switches to the error
// color.
func (l Layout) RenderStatusBar(text string, isErr bool) string {
	style := theme.StatusBarStyle
	if isErr {
		style = theme.ErrorBarStyle
	}
	rendered := style.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, fill(style, l.Width, rendered))
}

// RenderWithFrame stacks the header, tabs, content, and status bar.
func (l Layout) RenderWithFrame(header, tabs, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, tabs, content, statusBar)
}

// fill pads the remaining width between already rendered parts.
func fill(style lipgloss.Style, width int, parts ...string) string {
	gap := width
	for _, p := range parts {
		gap -= lipgloss.Width(p)
	}
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}
