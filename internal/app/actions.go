package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/certledger/internal/report"
	"github.com/nhle/certledger/internal/service"
)

// requestDoneMsg is sent after a sign request was attempted.
type requestDoneMsg struct {
	cert string
	err  error
}

// signDoneMsg is sent after a manual sign was attempted.
type signDoneMsg struct {
	cert string
	err  error
}

// verifyDoneMsg carries the result of re-verifying both chains.
type verifyDoneMsg struct {
	report service.VerifyReport
	err    error
}

// exportDoneMsg is sent after an evidence report was written.
type exportDoneMsg struct {
	cert string
	res  report.Result
	err  error
}

func (m Model) reloadAll() tea.Cmd {
	return tea.Batch(m.certs.Load(), m.evidence.Load(), m.audit.Load())
}

func (m Model) requestSignature(certNumber, actor string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		// The code goes to the receiver only; the UI never shows it.
		_, err := svc.RequestSignature(ctx, certNumber, actor)
		return requestDoneMsg{cert: certNumber, err: err}
	}
}

func (m Model) manualSign(certNumber, actor string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return signDoneMsg{cert: certNumber, err: svc.ManualOverrideSign(ctx, certNumber, actor)}
	}
}

func (m Model) verify() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		r, err := svc.VerifyLedgers(ctx)
		return verifyDoneMsg{report: r, err: err}
	}
}

func (m Model) export(certNumber string) tea.Cmd {
	svc, actor := m.svc, m.actor
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := svc.ExportEvidenceReport(ctx, certNumber, "", actor)
		return exportDoneMsg{cert: certNumber, res: res, err: err}
	}
}
