package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/keys"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/theme"
)

const intro = "Certificates move ISSUED → SIGN_REQUESTED → SIGNED. " +
	"A receiver signs by emailing the certificate number as the subject " +
	"and the sign code as the only body text."

// reasons explains the notes written on evidence rows.
var reasons = [][2]string{
	{model.ReasonNoCandidate, "subject is not a certificate awaiting signature"},
	{model.ReasonNoAuthorizedAddr, "neither receiver nor giver has an email on file"},
	{model.ReasonSenderNotAllowed, "reply came from an address not on file"},
	{model.ReasonCodeMismatch, "body was not exactly the current sign code"},
	{model.ReasonMatched, "certificate was signed by this message"},
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update is a no-op; the overlay has no state of its own.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the shortcuts, the workflow, and the evidence notes.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)
	reasonStyle := lipgloss.NewStyle().Foreground(theme.ColorYellow).Width(32)

	width := max(m.width-4, 10)
	m.help.Width = width

	var notes strings.Builder
	for i, r := range reasons {
		if i > 0 {
			notes.WriteString("\n")
		}
		notes.WriteString(reasonStyle.Render(r[0]) + theme.HelpStyle.Render(r[1]))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.UnsetMarginTop().Render("Keyboard Shortcuts"),
		"",
		m.help.View(m.keys),
		titleStyle.Render("Workflow"),
		theme.HelpStyle.Width(width).Render(intro),
		titleStyle.Render("Evidence notes"),
		notes.String(),
	)

	return theme.DetailPanelStyle.
		Width(width).
		Height(max(m.height-4, 1)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-4, 10)
}
