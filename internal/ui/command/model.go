// Package command is the ":" palette of the terminal UI.
package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/theme"
)

// CommandMsg carries the canonical name of the command to execute, or the
// raw input when nothing matched.
type CommandMsg string

// Command is one palette entry.
type Command struct {
	Name    string
	Help    string
	Aliases []string
}

// Commands lists what the palette understands.
var Commands = []Command{
	{Name: "scan", Help: "scan the mailbox for signature replies"},
	{Name: "verify", Help: "re-verify the evidence and audit chains"},
	{Name: "reload", Help: "reload the tables", Aliases: []string{"refresh"}},
	{Name: "certs", Help: "certificate list", Aliases: []string{"certificates"}},
	{Name: "evidence", Help: "evidence ledger"},
	{Name: "audit", Help: "audit ledger"},
	{Name: "settings", Help: "mailbox, policy, and password", Aliases: []string{"config"}},
	{Name: "help", Help: "keyboard shortcuts"},
	{Name: "quit", Help: "leave CertLedger", Aliases: []string{"q"}},
}

// Resolve maps input to a command name. Names and aliases match exactly;
// otherwise a prefix matching exactly one name wins. Anything else is
// returned unchanged.
func Resolve(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	for _, c := range Commands {
		if c.Name == input {
			return c.Name
		}
		for _, a := range c.Aliases {
			if a == input {
				return c.Name
			}
		}
	}

	if matches := matching(input); len(matches) == 1 {
		return matches[0].Name
	}
	return input
}

func matching(prefix string) []Command {
	var out []Command
	for _, c := range Commands {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func names() []string {
	out := make([]string, len(Commands))
	for i, c := range Commands {
		out[i] = c.Name
	}
	return out
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Width = max(width-6, 10)
	ti.ShowSuggestions = true
	ti.SetSuggestions(names())

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		name := Resolve(m.input.Value())
		m.input.Reset()
		if name == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			return CommandMsg(name)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette with the commands matching the input.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Width(10)

	lines := []string{titleStyle.Render("Command Palette"), m.input.View(), ""}
	matches := matching(strings.ToLower(strings.TrimSpace(m.input.Value())))
	if len(matches) == 0 {
		lines = append(lines, theme.HelpStyle.Render("no matching command"))
	}
	for _, c := range matches {
		help := c.Help
		if len(c.Aliases) > 0 {
			help = fmt.Sprintf("%s (%s)", help, strings.Join(c.Aliases, ", "))
		}
		lines = append(lines, nameStyle.Render(c.Name)+theme.HelpStyle.Render(help))
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 10)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-6, 10)
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Blur releases keyboard focus.
func (m *Model) Blur() {
	m.input.Blur()
}
