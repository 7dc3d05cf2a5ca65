// Package certlist is the certificates table.
package certlist

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
	"github.com/nhle/certledger/internal/ui"
)

// Lister reads certificates.
type Lister interface {
	ListCertificates(ctx context.Context, filter store.CertificateFilter) ([]model.Certificate, error)
}

// LoadedMsg is sent when certificates have been loaded from the store.
type LoadedMsg struct {
	Certificates []model.Certificate
	Err          error
}

var columns = []table.Column{
	{Title: "Cert", Width: 14},
	{Title: "Type", Width: 16},
	{Title: "Receiver", Width: 20},
	{Title: "Giver", Width: 20},
	{Title: "Valid until", Width: 11},
	{Title: "Status", Width: 14},
	{Title: "Signed", Width: 18},
}

// Model is the certificates view component.
type Model struct {
	table  table.Model
	src    Lister
	certs  []model.Certificate
	err    error
	width  int
	height int
}

// New creates a certificates table.
func New(src Lister, width, height int) Model {
	return Model{
		table:  ui.NewTable(columns, width, height),
		src:    src,
		width:  width,
		height: height,
	}
}

// Load returns a command that reads every certificate, newest first.
func (m Model) Load() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		certs, err := src.ListCertificates(context.Background(), store.CertificateFilter{})
		return LoadedMsg{Certificates: certs, Err: err}
	}
}

// Update handles messages for the certificates view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(LoadedMsg); ok {
		m.err = msg.Err
		if msg.Err == nil {
			m.certs = msg.Certificates
			m.table.SetRows(rows(msg.Certificates))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table.
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error loading certificates: %v", m.err)
	}
	if len(m.certs) == 0 {
		return "No certificates yet. Issue one with: certledger cert issue"
	}
	return m.table.View()
}

// Selected returns the certificate under the cursor.
func (m Model) Selected() (model.Certificate, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.certs) {
		return model.Certificate{}, false
	}
	return m.certs[i], true
}

// Len returns the number of loaded certificates.
func (m Model) Len() int {
	return len(m.certs)
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	ui.Resize(&m.table, columns, width, height)
}

func rows(certs []model.Certificate) []table.Row {
	out := make([]table.Row, len(certs))
	for i, c := range certs {
		out[i] = table.Row{
			c.CertNumber,
			c.CertType,
			c.ReceiverNameUsed,
			c.GiverNameUsed,
			c.ValidUntil.Local().Format(time.DateOnly),
			string(c.Status),
			signed(c),
		}
	}
	return out
}

func signed(c model.Certificate) string {
	if c.SignedAt == nil || c.SignedMethod == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", *c.SignedMethod, c.SignedAt.Local().Format(time.DateOnly))
}
