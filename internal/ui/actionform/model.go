// Package actionform holds the confirmation forms for certificate actions.
package actionform

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/theme"
)

// Action names the operation being confirmed.
type Action int

const (
	RequestSignature Action = iota
	ManualSign
)

func (a Action) String() string {
	if a == ManualSign {
		return "Manual sign"
	}
	return "Request signature"
}

// SubmittedMsg is dispatched when the user confirms the action.
type SubmittedMsg struct {
	Action     Action
	CertNumber string
	Actor      string
}

// CancelMsg is dispatched when the user declines or aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	actor   string
	confirm bool
}

// Model is the Bubble Tea model for the action forms.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	action Action
	cert   string
	width  int
	height int
}

// New creates an idle action form.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartRequest asks to confirm mailing a sign request for c.
func (m *Model) StartRequest(c model.Certificate, actor string) tea.Cmd {
	m.action = RequestSignature
	m.cert = c.CertNumber
	m.fb.actor = actor
	m.fb.confirm = false

	verb := "Send"
	if c.Status == model.StatusSignRequested {
		verb = "Re-send (the previous code stops working)"
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s a sign request for %s?", verb, c.CertNumber)).
				Description(fmt.Sprintf("Receiver: %s", c.ReceiverNameUsed)).
				Affirmative("Send").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// StartManualSign asks who is signing off c and then to confirm.
func (m *Model) StartManualSign(c model.Certificate, actor string) tea.Cmd {
	m.action = ManualSign
	m.cert = c.CertNumber
	m.fb.actor = actor
	m.fb.confirm = false

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Signed off by").
				Placeholder("your name").
				Value(&m.fb.actor).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a name is required")
					}
					return nil
				}),
			huh.NewConfirm().
				Title(fmt.Sprintf("Mark %s as SIGNED without an email?", c.CertNumber)).
				Description("This is recorded in the audit log under your name.").
				Affirmative("Sign").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// Active reports whether a form is open.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		if !m.fb.confirm {
			return m, cancel
		}
		submitted := SubmittedMsg{
			Action:     m.action,
			CertNumber: m.cert,
			Actor:      strings.TrimSpace(m.fb.actor),
		}
		return m, func() tea.Msg { return submitted }
	case huh.StateAborted:
		m.form = nil
		return m, cancel
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(m.action.String()) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) formWidth() int {
	return min(max(m.width-4, 20), 72)
}

func cancel() tea.Msg { return CancelMsg{} }
