// Package app is the root Bubble Tea model of the terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/keys"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/report"
	"github.com/nhle/certledger/internal/service"
	appsync "github.com/nhle/certledger/internal/sync"
	"github.com/nhle/certledger/internal/ui"
	"github.com/nhle/certledger/internal/ui/actionform"
	"github.com/nhle/certledger/internal/ui/certlist"
	"github.com/nhle/certledger/internal/ui/command"
	"github.com/nhle/certledger/internal/ui/config"
	"github.com/nhle/certledger/internal/ui/detail"
	helpview "github.com/nhle/certledger/internal/ui/help"
	"github.com/nhle/certledger/internal/ui/ledgerview"
)

// Service is the part of the ledger the UI drives.
type Service interface {
	certlist.Lister
	ledgerview.Source
	detail.Source
	config.Service
	RequestSignature(ctx context.Context, certNumber, actor string) (string, error)
	ManualOverrideSign(ctx context.Context, certNumber, actor string) error
	VerifyLedgers(ctx context.Context) (service.VerifyReport, error)
	ExportEvidenceReport(ctx context.Context, certNumber, dir, actor string) (report.Result, error)
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewCertificates ViewState = iota
	ViewEvidence
	ViewAudit
	ViewDetail
	ViewHelp
	ViewForm
	ViewCommand
	ViewSettings
)

// tabViews are the views cycled by the tab key, in display order.
var tabViews = []ViewState{ViewCertificates, ViewEvidence, ViewAudit}

var tabNames = []string{"Certificates", "Evidence", "Audit"}

// actionTimeout bounds a single request, sign, verify, or export.
const actionTimeout = 2 * time.Minute

// Options wires the root model.
type Options struct {
	Service Service
	Scanner *appsync.Scanner
	// Actor is recorded in the audit trail for actions taken in the UI.
	Actor string
	// AutoScan starts the periodic background scan.
	AutoScan bool
	Logger   *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the scan lifecycle.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	svc          Service
	scanner      *appsync.Scanner
	keys         *keys.KeyMap
	logger       *zap.Logger
	actor        string
	autoScan     bool

	certs    certlist.Model
	evidence ledgerview.Model
	audit    ledgerview.Model
	detail   detail.Model
	helpView helpview.Model
	form     actionform.Model
	palette  command.Model
	settings config.Model
	spinner  spinner.Model

	ready     bool
	statusMsg string
	statusErr bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Actor == "" {
		opts.Actor = model.SystemActor
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		currentView: ViewCertificates,
		svc:         opts.Service,
		scanner:     opts.Scanner,
		keys:        k,
		logger:      opts.Logger,
		actor:       opts.Actor,
		autoScan:    opts.AutoScan,
		certs:       certlist.New(opts.Service, 80, 24),
		evidence:    ledgerview.New(ledgerview.Evidence, opts.Service, 80, 24),
		audit:       ledgerview.New(ledgerview.Audit, opts.Service, 80, 24),
		detail:      detail.New(opts.Service, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		form:        actionform.New(80, 24),
		palette:     command.New(80, 24),
		settings:    config.New(opts.Service, k, opts.Actor, 80, 24),
		spinner:     sp,
	}
}

// Init loads the tables and subscribes to scan results.
func (m Model) Init() tea.Cmd {
	wait := m.scanner.WaitForNextResult()
	if m.autoScan {
		wait = m.scanner.Start()
	}
	return tea.Batch(m.reloadAll(), wait)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.certs.SetSize(w, h)
		m.evidence.SetSize(w, h)
		m.audit.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.form.SetSize(w, h)
		m.palette.SetSize(w, h)
		m.settings.SetSize(w, h)
		return m, nil

	case certlist.LoadedMsg:
		m.certs, _ = m.certs.Update(msg)
		if msg.Err != nil {
			m.setError(fmt.Sprintf("loading certificates: %v", msg.Err))
		}
		return m, nil

	case ledgerview.LoadedMsg:
		if msg.Kind == ledgerview.Audit {
			m.audit, _ = m.audit.Update(msg)
		} else {
			m.evidence, _ = m.evidence.Update(msg)
		}
		return m, nil

	case detail.LoadedMsg:
		m.detail, _ = m.detail.Update(msg)
		return m, nil

	case config.LoadedMsg:
		m.settings, _ = m.settings.Update(msg)
		return m, nil

	case config.DoneMsg:
		m.currentView = m.previousView
		return m, nil

	case config.SavedMsg:
		m.setStatus("settings saved")
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewCertificates
		return m, nil

	case command.CommandMsg:
		m.palette.Blur()
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case appsync.ScanResultMsg:
		m.keys.Scan.SetEnabled(true)
		m.applyScanResult(msg)
		return m, tea.Batch(m.reloadAll(), m.scanner.WaitForNextResult())

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		if m.currentView == ViewSettings {
			m.settings, cmd = m.settings.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.scanner.Scanning() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case actionform.SubmittedMsg:
		m.currentView = ViewCertificates
		switch msg.Action {
		case actionform.ManualSign:
			return m, m.manualSign(msg.CertNumber, msg.Actor)
		default:
			return m, m.requestSignature(msg.CertNumber, msg.Actor)
		}

	case actionform.CancelMsg:
		m.currentView = ViewCertificates
		m.setStatus("cancelled")
		return m, nil

	case requestDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("sign request for %s failed: %v", msg.cert, msg.err))
		} else {
			m.setStatus(fmt.Sprintf("sign request for %s sent", msg.cert))
		}
		return m, m.reloadAll()

	case signDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("manual sign of %s failed: %v", msg.cert, msg.err))
		} else {
			m.setStatus(fmt.Sprintf("%s marked SIGNED", msg.cert))
		}
		return m, m.reloadAll()

	case verifyDoneMsg:
		m.applyVerify(msg)
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("export of %s failed: %v", msg.cert, msg.err))
		} else {
			m.setStatus(fmt.Sprintf("report written to %s (sha256 %.12s…)", msg.res.Path, msg.res.SHA256))
		}
		return m, m.audit.Load()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.scanner.Stop()
			return m, tea.Quit
		}
		// Open forms and the palette own the keyboard.
		switch m.currentView {
		case ViewForm, ViewSettings:
			return m.updateActiveView(msg)
		case ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.palette.Blur()
				m.currentView = m.previousView
				return m, nil
			}
			return m.updateActiveView(msg)
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.scanner.Stop()
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Back):
		switch m.currentView {
		case ViewHelp:
			m.currentView = m.previousView
		case ViewDetail:
			// The detail view answers with a BackMsg.
			return nil, false
		}
		m.statusMsg, m.statusErr = "", false
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.closeHelp()
		m.previousView, m.currentView = m.currentView, ViewCommand
		return m.palette.Focus(), true

	case key.Matches(msg, m.keys.Settings):
		return m.openSettings(), true

	case key.Matches(msg, m.keys.NextView):
		m.currentView = nextTab(m.currentView)
		return nil, true

	case key.Matches(msg, m.keys.Refresh):
		return m.reloadAll(), true

	case key.Matches(msg, m.keys.Scan):
		return m.triggerScan(), true

	case key.Matches(msg, m.keys.Verify):
		m.setStatus("verifying hash chains…")
		return m.verify(), true
	}

	if m.currentView != ViewCertificates {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		c, ok := m.certs.Selected()
		if !ok {
			return nil, true
		}
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m.detail.Load(c.CertNumber), true

	case key.Matches(msg, m.keys.Request):
		c, ok := m.selectedUnsigned()
		if !ok {
			return nil, true
		}
		m.previousView, m.currentView = m.currentView, ViewForm
		return m.form.StartRequest(c, m.actor), true

	case key.Matches(msg, m.keys.ManualSign):
		c, ok := m.selectedUnsigned()
		if !ok {
			return nil, true
		}
		m.previousView, m.currentView = m.currentView, ViewForm
		return m.form.StartManualSign(c, m.actor), true

	case key.Matches(msg, m.keys.Export):
		c, ok := m.certs.Selected()
		if !ok {
			return nil, true
		}
		m.setStatus(fmt.Sprintf("exporting %s…", c.CertNumber))
		return m.export(c.CertNumber), true
	}
	return nil, false
}

// selectedUnsigned returns the selected certificate when an action can
// still apply to it, and explains in the status bar otherwise.
func (m *Model) selectedUnsigned() (model.Certificate, bool) {
	c, ok := m.certs.Selected()
	if !ok {
		m.setError("no certificate selected")
		return model.Certificate{}, false
	}
	if c.Status == model.StatusSigned {
		m.setError(fmt.Sprintf("%s is already signed", c.CertNumber))
		return model.Certificate{}, false
	}
	return c, true
}

func (m *Model) triggerScan() tea.Cmd {
	err := m.scanner.Trigger()
	if errors.Is(err, appsync.ErrScanRunning) {
		m.setStatus("a scan is already running")
		return nil
	}
	m.keys.Scan.SetEnabled(false)
	m.setStatus("scanning mailbox…")
	return m.spinner.Tick
}

func (m *Model) applyScanResult(msg appsync.ScanResultMsg) {
	res := msg.Result
	switch {
	case msg.AuthError != nil:
		m.setError(msg.AuthError.Message)
	case msg.Error != nil:
		m.setError(fmt.Sprintf("scan stopped after %d messages: %v", res.Processed, msg.Error))
	case res.Skipped:
		if msg.Manual {
			m.setError("email is not configured: set an account and run set-password")
		}
	default:
		if msg.Manual || res.Matched > 0 {
			m.setStatus(scanSummary(res.Processed, res.Matched, res.Watermark))
		}
	}
}

func (m *Model) applyVerify(msg verifyDoneMsg) {
	if msg.err != nil {
		m.setError(fmt.Sprintf("verification failed: %v", msg.err))
		return
	}
	r := msg.report
	if r.OK() {
		m.setStatus(fmt.Sprintf("chains intact: %d evidence, %d audit entries",
			r.Evidence.Total, r.Audit.Total))
		return
	}
	m.setError(fmt.Sprintf("CHAIN BROKEN: evidence %d/%d failed, audit %d/%d failed",
		r.Evidence.Failed, r.Evidence.Total, r.Audit.Failed, r.Audit.Total))
}

func (m *Model) setStatus(s string) {
	m.statusMsg, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.statusMsg, m.statusErr = s, true
	m.logger.Warn("ui error", zap.String("message", s))
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewCertificates:
		m.certs, cmd = m.certs.Update(msg)
	case ViewEvidence:
		m.evidence, cmd = m.evidence.Update(msg)
	case ViewAudit:
		m.audit, cmd = m.audit.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	case ViewCommand:
		m.palette, cmd = m.palette.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("CertLedger", m.scanStatus())
	tabs := m.layout.RenderTabs(tabNames, m.activeTab())
	statusBar := m.layout.RenderStatusBar(m.statusText(), m.statusErr)

	return m.layout.RenderWithFrame(header, tabs, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewCertificates:
		return m.certs.View()
	case ViewEvidence:
		return m.evidence.View()
	case ViewAudit:
		return m.audit.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewForm:
		return m.form.View()
	case ViewCommand:
		return m.palette.View()
	case ViewSettings:
		return m.settings.View()
	default:
		return ""
	}
}

// scanStatus returns a short string describing the scanner state.
func (m Model) scanStatus() string {
	st := m.scanner.Status()
	switch {
	case st.State == appsync.ScanRunning:
		return m.spinner.View() + " scanning"
	case st.LastScan.IsZero():
		return "not scanned yet"
	case st.State == appsync.ScanError:
		return "last scan failed " + st.LastScan.Local().Format(time.Kitchen)
	default:
		return fmt.Sprintf("scanned %s · uid %d", st.LastScan.Local().Format(time.Kitchen), st.Last.Watermark)
	}
}

// statusText returns the transient message, or key hints for the view.
func (m Model) statusText() string {
	if m.statusMsg != "" {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewForm:
		return "enter confirm | esc cancel"
	case ViewCommand:
		return "enter execute | esc close"
	case ViewSettings:
		return "esc back | ctrl+c quit"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewCertificates:
		return "enter open | r request | m manual sign | x export | s scan | v verify | : command | ? help | q quit"
	default:
		return "s scan | v verify | tab view | ? help | q quit"
	}
}

func (m Model) activeTab() int {
	view := m.currentView
	switch view {
	case ViewHelp, ViewForm, ViewCommand, ViewSettings:
		view = m.previousView
	case ViewDetail:
		view = ViewCertificates
	}
	for i, v := range tabViews {
		if v == view {
			return i
		}
	}
	return 0
}

func nextTab(v ViewState) ViewState {
	for i, t := range tabViews {
		if t == v {
			return tabViews[(i+1)%len(tabViews)]
		}
	}
	return ViewCertificates
}

func scanSummary(processed, matched int, watermark uint32) string {
	return fmt.Sprintf("scan done: %d processed, %d signed, watermark %d", processed, matched, watermark)
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(name string) tea.Cmd {
	switch name {
	case "scan":
		return m.triggerScan()
	case "verify":
		m.setStatus("verifying hash chains…")
		return m.verify()
	case "reload":
		return m.reloadAll()
	case "certs":
		m.currentView = ViewCertificates
	case "evidence":
		m.currentView = ViewEvidence
	case "audit":
		m.currentView = ViewAudit
	case "help":
		m.previousView, m.currentView = m.currentView, ViewHelp
	case "settings":
		return m.openSettings()
	case "quit":
		m.scanner.Stop()
		return tea.Quit
	default:
		m.setError(fmt.Sprintf("unknown command %q", name))
	}
	return nil
}

func (m *Model) openSettings() tea.Cmd {
	m.closeHelp()
	if m.currentView != ViewSettings {
		m.previousView = m.currentView
	}
	m.currentView = ViewSettings
	return m.settings.Load()
}

// closeHelp leaves the help overlay so another overlay can return to the
// view underneath it.
func (m *Model) closeHelp() {
	if m.currentView == ViewHelp {
		m.currentView = m.previousView
	}
}
