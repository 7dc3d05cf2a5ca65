// Package detail shows one certificate with its evidence and audit trail.
package detail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/certledger/internal/keys"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
	"github.com/nhle/certledger/internal/theme"
)

// BackMsg signals the parent to navigate back to the certificates view.
type BackMsg struct{}

// LoadedMsg carries one certificate and the ledger rows about it.
type LoadedMsg struct {
	Certificate *model.Certificate
	Evidence    []model.EmailEvidence
	Audit       []model.AuditLogEntry
	Err         error
}

// Source reads a certificate and its ledger rows.
type Source interface {
	GetCertificate(ctx context.Context, certNumber string) (*model.Certificate, error)
	ListEvidence(ctx context.Context, filter store.EvidenceFilter) ([]model.EmailEvidence, error)
	ListAudit(ctx context.Context, filter store.AuditFilter) ([]model.AuditLogEntry, error)
}

// Model is the certificate detail view component.
type Model struct {
	data     LoadedMsg
	viewport viewport.Model
	src      Source
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(src Source, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		src:      src,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Load returns a command that reads certNumber and its history.
func (m Model) Load(certNumber string) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx := context.Background()
		c, err := src.GetCertificate(ctx, certNumber)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		ev, err := src.ListEvidence(ctx, store.EvidenceFilter{CertNumber: &certNumber})
		if err != nil {
			return LoadedMsg{Err: err}
		}
		entity := model.EntityCert
		audit, err := src.ListAudit(ctx, store.AuditFilter{EntityType: &entity, EntityID: &certNumber})
		if err != nil {
			return LoadedMsg{Err: err}
		}
		return LoadedMsg{Certificate: c, Evidence: ev, Audit: audit}
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.data = msg
		m.loading = false
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return placeholder.Render("Loading certificate...")
	case m.data.Err != nil:
		return placeholder.Render(fmt.Sprintf("Could not load certificate: %v", m.data.Err))
	case m.data.Certificate == nil:
		return placeholder.Render("No certificate selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
// The sign code is never shown.
func (m Model) renderContent() string {
	c := m.data.Certificate
	if c == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(14)
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(max(m.width-4, 1), 80)))

	kv := func(k, v string) string {
		return metaStyle.Render(k+":") + " " + v
	}

	sections := []string{
		titleStyle.Render(c.CertNumber+"  "+c.CertType) + "  " +
			theme.StatusStyle(string(c.Status)).Render(string(c.Status)),
		"",
		kv("Receiver", fmt.Sprintf("%s (%s)", c.ReceiverNameUsed, c.ReceiverID)),
		kv("Giver", fmt.Sprintf("%s (%s)", c.GiverNameUsed, c.GiverID)),
		kv("Issued", c.IssuedAt.Local().Format(time.DateOnly)),
		kv("Valid until", c.ValidUntil.Local().Format(time.DateOnly)),
	}
	if c.SignRequestedAt != nil {
		sections = append(sections, kv("Requested", c.SignRequestedAt.Local().Format(time.DateTime)))
	}
	if c.SignedAt != nil {
		by := ""
		if c.SignedBy != nil {
			by = " by " + *c.SignedBy
		}
		method := ""
		if c.SignedMethod != nil {
			method = " via " + string(*c.SignedMethod)
		}
		sections = append(sections, kv("Signed", c.SignedAt.Local().Format(time.DateTime)+by+method))
	}

	sections = append(sections, "", separator, "",
		titleStyle.Render(fmt.Sprintf("Evidence (%d)", len(m.data.Evidence))))
	for _, e := range m.data.Evidence {
		verdict := theme.ResultStyle(e.Matched).Render(e.Notes)
		sections = append(sections, fmt.Sprintf("#%d  uid %d  %s  %s  %s",
			e.ID, e.MailboxUID, e.ReceivedAt.Local().Format(time.DateTime), e.FromEmail, verdict))
	}

	sections = append(sections, "", separator, "",
		titleStyle.Render(fmt.Sprintf("Audit (%d)", len(m.data.Audit))))
	for _, a := range m.data.Audit {
		result := theme.ResultStyle(a.Result == model.ResultOK).Render(a.Result)
		sections = append(sections, fmt.Sprintf("#%d  %s  %-22s %-12s %s  %s",
			a.ID, a.TS.Local().Format(time.DateTime), a.Action, a.Actor, result, a.Message))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
