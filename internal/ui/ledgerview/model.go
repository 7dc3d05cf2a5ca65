// Package ledgerview shows the evidence and audit ledgers as tables.
package ledgerview

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
	"github.com/nhle/certledger/internal/ui"
)

// Kind selects which ledger a Model shows.
type Kind int

const (
	Evidence Kind = iota
	Audit
)

func (k Kind) String() string {
	if k == Audit {
		return "Audit"
	}
	return "Evidence"
}

// pageSize caps how many of the newest rows are loaded.
const pageSize = 500

const timeLayout = "2006-01-02 15:04"

// Source reads the ledgers.
type Source interface {
	ListEvidence(ctx context.Context, filter store.EvidenceFilter) ([]model.EmailEvidence, error)
	ListAudit(ctx context.Context, filter store.AuditFilter) ([]model.AuditLogEntry, error)
}

// LoadedMsg carries freshly loaded rows for one ledger.
type LoadedMsg struct {
	Kind Kind
	Rows []table.Row
	Err  error
}

var evidenceColumns = []table.Column{
	{Title: "ID", Width: 6},
	{Title: "Received", Width: 16},
	{Title: "UID", Width: 7},
	{Title: "From", Width: 26},
	{Title: "Subject", Width: 16},
	{Title: "Match", Width: 5},
	{Title: "Notes", Width: 24},
}

var auditColumns = []table.Column{
	{Title: "ID", Width: 6},
	{Title: "Time", Width: 16},
	{Title: "Actor", Width: 12},
	{Title: "Action", Width: 20},
	{Title: "Entity", Width: 16},
	{Title: "Result", Width: 6},
	{Title: "Message", Width: 24},
}

// Model is a read-only ledger table.
type Model struct {
	kind    Kind
	table   table.Model
	src     Source
	columns []table.Column
	loaded  bool
	err     error
}

// New creates a table for the given ledger.
func New(kind Kind, src Source, width, height int) Model {
	cols := evidenceColumns
	if kind == Audit {
		cols = auditColumns
	}
	return Model{
		kind:    kind,
		table:   ui.NewTable(cols, width, height),
		src:     src,
		columns: cols,
	}
}

// Kind reports which ledger m shows.
func (m Model) Kind() Kind {
	return m.kind
}

// Load returns a command that reads the newest ledger rows.
func (m Model) Load() tea.Cmd {
	src, kind := m.src, m.kind
	return func() tea.Msg {
		ctx := context.Background()
		if kind == Audit {
			entries, err := src.ListAudit(ctx, store.AuditFilter{Limit: pageSize})
			return LoadedMsg{Kind: kind, Rows: auditRows(entries), Err: err}
		}
		ev, err := src.ListEvidence(ctx, store.EvidenceFilter{Limit: pageSize})
		return LoadedMsg{Kind: kind, Rows: evidenceRows(ev), Err: err}
	}
}

// Update handles messages for the ledger view. LoadedMsg for the other
// ledger is ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(LoadedMsg); ok {
		if msg.Kind != m.kind {
			return m, nil
		}
		m.loaded = true
		m.err = msg.Err
		if msg.Err == nil {
			m.table.SetRows(msg.Rows)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table.
func (m Model) View() string {
	switch {
	case m.err != nil:
		return fmt.Sprintf("Error loading %s ledger: %v", m.kind, m.err)
	case !m.loaded:
		return "Loading..."
	case len(m.table.Rows()) == 0:
		return fmt.Sprintf("The %s ledger is empty.", m.kind)
	}
	return m.table.View()
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	ui.Resize(&m.table, m.columns, width, height)
}

func evidenceRows(ev []model.EmailEvidence) []table.Row {
	out := make([]table.Row, len(ev))
	for i, e := range ev {
		match := "no"
		if e.Matched {
			match = "yes"
		}
		out[i] = table.Row{
			strconv.FormatInt(e.ID, 10),
			e.ReceivedAt.Local().Format(timeLayout),
			strconv.FormatUint(uint64(e.MailboxUID), 10),
			e.FromEmail,
			e.Subject,
			match,
			e.Notes,
		}
	}
	return out
}

func auditRows(entries []model.AuditLogEntry) []table.Row {
	out := make([]table.Row, len(entries))
	for i, a := range entries {
		out[i] = table.Row{
			strconv.FormatInt(a.ID, 10),
			a.TS.Local().Format(timeLayout),
			a.Actor,
			a.Action,
			a.EntityID,
			a.Result,
			a.Message,
		}
	}
	return out
}

