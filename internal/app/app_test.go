package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/service"
	appsync "github.com/nhle/certledger/internal/sync"
	"github.com/nhle/certledger/internal/testutil"
	"github.com/nhle/certledger/internal/ui/actionform"
)

type harness struct {
	ledger *service.Ledger
	box    *mailbox.Memory
	cert   model.Certificate
}

func newHarness(t *testing.T) (harness, Model) {
	t.Helper()
	ctx := context.Background()

	cfg := model.DefaultAppConfig()
	cfg.Mailbox.Account = "registry@example.com"
	cfg.Report.Dir = t.TempDir()

	box := mailbox.NewMemory()
	logger := zaptest.NewLogger(t)
	ledger := service.New(service.Options{
		Store:  testutil.NewTestStore(t),
		Config: model.NewMemoryConfigStore(cfg),
		Vault:  credential.NewStatic(map[string]string{"registry@example.com": "pw"}),
		Dialer: box,
		Sender: box,
		Logger: logger,
	})

	r, err := ledger.CreatePerson(ctx, service.PersonInput{
		GovID: "R1", FirstName: "Alice", LastName: "Adams", Email: "alice@example.com",
	}, "clerk")
	require.NoError(t, err)
	g, err := ledger.CreatePerson(ctx, service.PersonInput{
		GovID: "G1", FirstName: "Gary", LastName: "Brown",
	}, "clerk")
	require.NoError(t, err)
	c, err := ledger.IssueCertificate(ctx, service.CertificateInput{
		CertType: "First Aid", ReceiverID: r.PersonID, GiverID: g.PersonID, ValidDays: 30,
	}, "clerk")
	require.NoError(t, err)

	m := New(Options{
		Service: ledger,
		Scanner: appsync.New(ledger, time.Hour, logger),
		Actor:   "operator",
		Logger:  logger,
	})
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m = load(t, m)

	return harness{ledger: ledger, box: box, cert: c}, m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	if k == "tab" {
		msg = tea.KeyMsg{Type: tea.KeyTab}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func load(t *testing.T, m Model) Model {
	t.Helper()
	m = send(t, m, m.certs.Load()())
	m = send(t, m, m.evidence.Load()())
	return send(t, m, m.audit.Load()())
}

func TestTabCyclesViews(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, "tab")
	assert.Equal(t, ViewEvidence, m.currentView)
	m, _ = press(t, m, "tab")
	assert.Equal(t, ViewAudit, m.currentView)

	m, _ = press(t, m, "?")
	assert.Equal(t, ViewHelp, m.currentView)
	assert.Equal(t, 2, m.activeTab())
	m, _ = press(t, m, "?")
	assert.Equal(t, ViewAudit, m.currentView)

	m, _ = press(t, m, "tab")
	assert.Equal(t, ViewCertificates, m.currentView)
}

func TestView(t *testing.T) {
	h, m := newHarness(t)

	out := m.View()
	assert.Contains(t, out, "CertLedger")
	assert.Contains(t, out, "Certificates")
	assert.Contains(t, out, h.cert.CertNumber)
	assert.Contains(t, out, "not scanned yet")
}

func TestRequestSignature(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "r")
	require.Equal(t, ViewForm, m.currentView)
	assert.True(t, m.form.Active())
	assert.Equal(t, 0, m.activeTab())

	next, cmd := m.Update(actionform.SubmittedMsg{
		Action:     actionform.RequestSignature,
		CertNumber: h.cert.CertNumber,
		Actor:      "operator",
	})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, ViewCertificates, m.currentView)

	done, ok := cmd().(requestDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	m = send(t, m, done)
	assert.False(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "sent")

	sent := h.box.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
}

func TestManualSignRefusedWhenSigned(t *testing.T) {
	h, m := newHarness(t)
	require.NoError(t, h.ledger.ManualOverrideSign(context.Background(), h.cert.CertNumber, "boss"))
	m = load(t, m)

	m, cmd := press(t, m, "m")
	assert.Nil(t, cmd)
	assert.Equal(t, ViewCertificates, m.currentView)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "already signed")
}

func TestCancelledFormChangesNothing(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "m")
	require.Equal(t, ViewForm, m.currentView)
	m = send(t, m, actionform.CancelMsg{})
	assert.Equal(t, ViewCertificates, m.currentView)

	got, err := h.ledger.GetCertificate(context.Background(), h.cert.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIssued, got.Status)
}

func TestScanKeyDisabledWhileScanning(t *testing.T) {
	h, m := newHarness(t)
	code, err := h.ledger.RequestSignature(context.Background(), h.cert.CertNumber, "clerk")
	require.NoError(t, err)
	h.box.Put(4, []byte("From: alice@example.com\r\nSubject: "+h.cert.CertNumber+"\r\n\r\n"+code+"\r\n"))

	m, cmd := press(t, m, "s")
	require.NotNil(t, cmd)
	assert.False(t, m.keys.Scan.Enabled())

	// A second press while the first scan is outstanding is ignored.
	m, _ = press(t, m, "s")
	assert.False(t, m.keys.Scan.Enabled())

	msg, ok := m.scanner.WaitForNextResult()().(appsync.ScanResultMsg)
	require.True(t, ok)
	require.NoError(t, msg.Error)
	m = send(t, m, msg)

	assert.True(t, m.keys.Scan.Enabled())
	assert.False(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "1 signed")
	assert.Contains(t, m.statusMsg, "watermark 4")
}

func TestVerify(t *testing.T) {
	_, m := newHarness(t)

	m, cmd := press(t, m, "v")
	require.NotNil(t, cmd)
	m = send(t, m, cmd())
	assert.False(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "chains intact")
}

func TestExport(t *testing.T) {
	h, m := newHarness(t)

	m, cmd := press(t, m, "x")
	require.NotNil(t, cmd)
	done, ok := cmd().(exportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, h.cert.CertNumber, done.cert)

	m = send(t, m, done)
	assert.Contains(t, m.statusMsg, "report written to")
}

func TestDetailOpensAndGoesBack(t *testing.T) {
	h, m := newHarness(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.Equal(t, ViewDetail, m.currentView)
	require.NotNil(t, cmd)
	assert.Equal(t, 0, m.activeTab())

	m = send(t, m, cmd())
	out := m.View()
	assert.Contains(t, out, h.cert.CertNumber)
	assert.Contains(t, out, model.ActionCreateCert)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	require.NotNil(t, cmd)
	m = send(t, m, cmd())
	assert.Equal(t, ViewCertificates, m.currentView)
}

func TestCommandPalette(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, ":")
	require.Equal(t, ViewCommand, m.currentView)

	m, _ = press(t, m, "audit")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	m = send(t, m, cmd())
	assert.Equal(t, ViewAudit, m.currentView)

	m, _ = press(t, m, ":")
	m, _ = press(t, m, "bogus")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = send(t, next.(Model), cmd())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.statusMsg, `unknown command "bogus"`)
	assert.Equal(t, ViewAudit, m.currentView)
}

func TestCommandPaletteEscCloses(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, "tab")
	m, _ = press(t, m, ":")
	require.Equal(t, ViewCommand, m.currentView)
	assert.Equal(t, 1, m.activeTab())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, ViewEvidence, m.currentView)
}

func TestSettingsOpensAndCloses(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, "tab")
	m, cmd := press(t, m, "c")
	require.Equal(t, ViewSettings, m.currentView)
	assert.Equal(t, 1, m.activeTab())
	require.NotNil(t, cmd)

	m = send(t, m, cmd())
	assert.Contains(t, m.View(), "registry@example.com")

	// Keys belong to the settings screen while it is open.
	m, _ = press(t, m, "q")
	assert.Equal(t, ViewSettings, m.currentView)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	require.NotNil(t, cmd)
	m = send(t, m, cmd())
	assert.Equal(t, ViewEvidence, m.currentView)
}

func TestPaletteFromHelpReturnsUnderneath(t *testing.T) {
	_, m := newHarness(t)

	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "?")
	m, _ = press(t, m, ":")
	require.Equal(t, ViewCommand, m.currentView)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, ViewEvidence, m.currentView)
}
