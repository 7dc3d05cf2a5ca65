package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/certledger/internal/certificate"
	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/service"
	"github.com/nhle/certledger/internal/store"
	"github.com/nhle/certledger/internal/testutil"
)

const registry = "registry@example.com"

var now = testutil.FixedTime.Add(24 * time.Hour)

type fixture struct {
	store  *store.SQLiteStore
	box    *mailbox.Memory
	vault  *credential.Static
	config *model.MemoryConfigStore
	ledger *service.Ledger
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	cfg := model.DefaultAppConfig()
	cfg.Mailbox.Account = registry
	cfg.Report.Dir = t.TempDir()

	f := fixture{
		store:  testutil.NewTestStore(t),
		box:    mailbox.NewMemory(),
		vault:  credential.NewStatic(map[string]string{registry: "app-password"}),
		config: model.NewMemoryConfigStore(cfg),
	}
	f.ledger = service.New(service.Options{
		Store:   f.store,
		Config:  f.config,
		Vault:   f.vault,
		Dialer:  f.box,
		Sender:  f.box,
		Logger:  zaptest.NewLogger(t),
		Now:     func() time.Time { return now },
		NewUUID: func() string { return "scan-1" },
	})
	return f
}

// issue creates a receiver, a giver, and one ISSUED certificate.
func (f fixture) issue(t *testing.T, receiverEmail string) model.Certificate {
	t.Helper()
	ctx := context.Background()

	r, err := f.ledger.CreatePerson(ctx, service.PersonInput{
		GovID: "GOV-R", FirstName: "Alice", LastName: "Adams", Email: receiverEmail,
	}, "clerk")
	require.NoError(t, err)
	g, err := f.ledger.CreatePerson(ctx, service.PersonInput{
		GovID: "GOV-G", FirstName: "Gary", LastName: "Brown", Email: "gary@example.com",
	}, "clerk")
	require.NoError(t, err)

	c, err := f.ledger.IssueCertificate(ctx, service.CertificateInput{
		CertType:   "First Aid",
		ReceiverID: r.PersonID,
		GiverID:    g.PersonID,
		ValidDays:  365,
	}, "clerk")
	require.NoError(t, err)
	return c
}

func (f fixture) audits(t *testing.T, action string) []model.AuditLogEntry {
	t.Helper()
	entries, err := f.store.ListAudit(context.Background(), store.AuditFilter{Action: &action})
	require.NoError(t, err)
	return entries
}

func (f fixture) status(t *testing.T, number string) model.CertificateStatus {
	t.Helper()
	c, err := f.store.GetCertificate(context.Background(), number)
	require.NoError(t, err)
	return c.Status
}

func rawReply(from, subject, body string) []byte {
	return []byte("From: " + from + "\r\nSubject: " + subject + "\r\n\r\n" + body + "\r\n")
}

func TestCreatePerson(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p1, err := f.ledger.CreatePerson(ctx, service.PersonInput{
		GovID: " 123 ", FirstName: "Alice", LastName: "Adams", Email: "Alice <ALICE@Example.com>",
	}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, "P-000001", p1.PersonID)
	assert.Equal(t, "123", p1.GovID)
	assert.Equal(t, "alice@example.com", p1.Email)

	p2, err := f.ledger.CreatePerson(ctx, service.PersonInput{GovID: "456", FirstName: "Bo", LastName: "Li"}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, "P-000002", p2.PersonID)
	assert.Empty(t, p2.Email)

	created := f.audits(t, model.ActionCreatePerson)
	require.Len(t, created, 2)
	assert.Equal(t, "clerk", created[0].Actor)
	assert.Equal(t, model.EntityPerson, created[0].EntityType)
}

func TestCreatePerson_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		in   service.PersonInput
	}{
		{"missing gov id", service.PersonInput{FirstName: "A", LastName: "B"}},
		{"missing first name", service.PersonInput{GovID: "1", LastName: "B"}},
		{"missing last name", service.PersonInput{GovID: "1", FirstName: "A"}},
		{"bad email", service.PersonInput{GovID: "1", FirstName: "A", LastName: "B", Email: "not-an-address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreatePerson(context.Background(), tt.in, "clerk")
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

func TestCreatePerson_DuplicateGovID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	in := service.PersonInput{GovID: "1", FirstName: "A", LastName: "B"}
	_, err := f.ledger.CreatePerson(ctx, in, "clerk")
	require.NoError(t, err)
	_, err = f.ledger.CreatePerson(ctx, in, "clerk")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdatePerson(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.ledger.CreatePerson(ctx, service.PersonInput{GovID: "1", FirstName: "A", LastName: "B"}, "clerk")
	require.NoError(t, err)

	updated, err := f.ledger.UpdatePerson(ctx, p.PersonID, service.PersonInput{
		GovID: "1", FirstName: "A", LastName: "B", Email: "a@example.com",
	}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", updated.Email)
	assert.True(t, updated.CreatedAt.Equal(p.CreatedAt))

	edits := f.audits(t, model.ActionEditPerson)
	require.Len(t, edits, 1)
	require.NotNil(t, edits[0].BeforeJSON)
	require.NotNil(t, edits[0].AfterJSON)
	assert.NotContains(t, *edits[0].BeforeJSON, "a@example.com")
	assert.Contains(t, *edits[0].AfterJSON, "a@example.com")
}

func TestUpdatePerson_MissingIsAuditedAsError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.UpdatePerson(ctx, "P-999999", service.PersonInput{GovID: "1", FirstName: "A", LastName: "B"}, "clerk")
	require.ErrorIs(t, err, store.ErrNotFound)

	edits := f.audits(t, model.ActionEditPerson)
	require.Len(t, edits, 1)
	assert.Equal(t, model.ResultError, edits[0].Result)
}

func TestIssueCertificate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	c := f.issue(t, "alice@example.com")
	assert.Equal(t, "C-2025-000001", c.CertNumber)
	assert.Equal(t, model.StatusIssued, c.Status)
	assert.Equal(t, "Alice Adams", c.ReceiverNameUsed)
	assert.Equal(t, "Gary Brown", c.GiverNameUsed)
	assert.True(t, c.ValidUntil.Equal(now.AddDate(0, 0, 365)))

	created := f.audits(t, model.ActionCreateCert)
	require.Len(t, created, 1)
	assert.Equal(t, c.CertNumber, created[0].EntityID)
}

func TestIssueCertificate_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	p, err := f.ledger.CreatePerson(ctx, service.PersonInput{GovID: "1", FirstName: "A", LastName: "B"}, "clerk")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   service.CertificateInput
	}{
		{"no type", service.CertificateInput{ReceiverID: p.PersonID, GiverID: p.PersonID, ValidDays: 1}},
		{"no validity", service.CertificateInput{CertType: "T", ReceiverID: p.PersonID, GiverID: p.PersonID}},
		{"expires before issue", service.CertificateInput{
			CertType: "T", ReceiverID: p.PersonID, GiverID: p.PersonID,
			IssuedAt: now, ValidUntil: now.Add(-time.Hour),
		}},
		{"unknown receiver", service.CertificateInput{CertType: "T", ReceiverID: "P-000404", GiverID: p.PersonID, ValidDays: 1}},
		{"missing giver", service.CertificateInput{CertType: "T", ReceiverID: p.PersonID, ValidDays: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.IssueCertificate(ctx, tt.in, "clerk")
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}

	certs, err := f.ledger.ListCertificates(ctx, store.CertificateFilter{})
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestRequestSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")

	code, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
	require.NoError(t, err)
	assert.True(t, certificate.ValidSignCode(code))

	sent := f.box.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, registry, sent[0].From)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "SIGN REQUEST: "+c.CertNumber, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Subject must be exactly: "+c.CertNumber)
	assert.Contains(t, sent[0].Body, "(no extra text): "+code)
	assert.Contains(t, sent[0].Body, "Receiver: Alice Adams")

	got, err := f.ledger.GetCertificate(ctx, c.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSignRequested, got.Status)
	assert.Equal(t, code, got.CurrentSignCode())
	require.NotNil(t, got.SignRequestedAt)
	assert.True(t, got.SignRequestedAt.Equal(now))

	sends := f.audits(t, model.ActionSendSignEmail)
	require.Len(t, sends, 1)
	assert.Equal(t, model.ResultOK, sends[0].Result)
	require.NotNil(t, sends[0].AfterJSON)
	assert.NotContains(t, *sends[0].AfterJSON, code)
	assert.Contains(t, *sends[0].AfterJSON, certificate.RedactCode(code))
}

func TestRequestSignature_ReissueReplacesCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")

	first, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
	require.NoError(t, err)
	second, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
	require.NoError(t, err)

	got, err := f.ledger.GetCertificate(ctx, c.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, second, got.CurrentSignCode())
	assert.Len(t, f.audits(t, model.ActionReissueSignRequest), 1)

	// The superseded code no longer confirms.
	if first != second {
		f.box.Put(1, rawReply("alice@example.com", c.CertNumber, first))
		res, err := f.ledger.RunScan(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Matched)
		assert.Equal(t, model.StatusSignRequested, f.status(t, c.CertNumber))
	}
}

func TestRequestSignature_Refusals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no receiver email", func(t *testing.T) {
		f := newFixture(t)
		c := f.issue(t, "")
		_, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
		assert.ErrorIs(t, err, service.ErrNoReceiverEmail)
		assert.Empty(t, f.box.Sent())
		assert.Equal(t, model.StatusIssued, f.status(t, c.CertNumber))
	})

	t.Run("no account", func(t *testing.T) {
		f := newFixture(t)
		c := f.issue(t, "alice@example.com")
		cfg, err := f.config.Load()
		require.NoError(t, err)
		cfg.Mailbox.Account = ""
		require.NoError(t, f.config.Save(cfg))

		_, err = f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
		assert.ErrorIs(t, err, service.ErrMailNotConfigured)
		assert.Empty(t, f.box.Sent())
	})

	t.Run("no password", func(t *testing.T) {
		f := newFixture(t)
		f.vault = credential.NewStatic(nil)
		f.ledger = service.New(service.Options{
			Store: f.store, Config: f.config, Vault: f.vault, Dialer: f.box, Sender: f.box,
		})
		c := f.issue(t, "alice@example.com")

		_, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
		assert.ErrorIs(t, err, service.ErrMailNotConfigured)
	})

	t.Run("already signed", func(t *testing.T) {
		f := newFixture(t)
		c := f.issue(t, "alice@example.com")
		require.NoError(t, f.ledger.ManualOverrideSign(ctx, c.CertNumber, "supervisor"))

		_, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
		assert.ErrorIs(t, err, certificate.ErrAlreadySigned)
		assert.ErrorIs(t, err, certificate.ErrInvalidTransition)
		assert.Empty(t, f.box.Sent())
	})

	t.Run("already signed without mail settings", func(t *testing.T) {
		f := newFixture(t)
		c := f.issue(t, "")
		require.NoError(t, f.ledger.ManualOverrideSign(ctx, c.CertNumber, "supervisor"))
		cfg, err := f.config.Load()
		require.NoError(t, err)
		cfg.Mailbox.Account = ""
		require.NoError(t, f.config.Save(cfg))

		_, err = f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
		assert.ErrorIs(t, err, certificate.ErrAlreadySigned)
		assert.NotErrorIs(t, err, service.ErrNoReceiverEmail)
		assert.NotErrorIs(t, err, service.ErrMailNotConfigured)
	})

	t.Run("unknown certificate", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.RequestSignature(ctx, "C-2025-000404", "clerk")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRequestSignature_SendFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")
	f.box.SendErr = errors.New("554 relay denied")

	_, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
	require.Error(t, err)

	got, err := f.ledger.GetCertificate(ctx, c.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIssued, got.Status)
	assert.Nil(t, got.SignCode)

	sends := f.audits(t, model.ActionSendSignEmail)
	require.Len(t, sends, 1)
	assert.Equal(t, model.ResultError, sends[0].Result)
	assert.Contains(t, sends[0].Message, "relay denied")
}

func TestEndToEnd_RequestThenEmailConfirmation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")

	code, err := f.ledger.RequestSignature(ctx, c.CertNumber, "clerk")
	require.NoError(t, err)

	f.box.Put(10, rawReply("Alice Adams <alice@example.com>", c.CertNumber, code))
	res, err := f.ledger.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, uint32(10), res.Watermark)

	got, err := f.ledger.GetCertificate(ctx, c.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigned, got.Status)
	assert.Equal(t, model.SignMethodEmail, *got.SignedMethod)

	matched := true
	ev, err := f.ledger.ListEvidence(ctx, store.EvidenceFilter{Matched: &matched})
	require.NoError(t, err)
	require.Len(t, ev, 1)
	assert.Equal(t, "alice@example.com", ev[0].FromEmail)

	assert.Len(t, f.audits(t, model.ActionConfirmSign), 1)

	report, err := f.ledger.VerifyLedgers(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Evidence.Total)
}

func TestManualOverrideSign(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")

	require.NoError(t, f.ledger.ManualOverrideSign(ctx, c.CertNumber, "supervisor"))

	got, err := f.ledger.GetCertificate(ctx, c.CertNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigned, got.Status)
	assert.Equal(t, model.SignMethodManual, *got.SignedMethod)
	assert.Equal(t, "supervisor", *got.SignedBy)

	err = f.ledger.ManualOverrideSign(ctx, c.CertNumber, "supervisor")
	assert.ErrorIs(t, err, certificate.ErrAlreadySigned)

	signs := f.audits(t, model.ActionManualSign)
	require.Len(t, signs, 2)
	assert.Equal(t, model.ResultError, signs[0].Result)
	assert.Equal(t, model.ResultOK, signs[1].Result)
	assert.Equal(t, "supervisor", signs[1].Actor)
}

func TestManualOverrideSign_RequiresActor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")

	err := f.ledger.ManualOverrideSign(context.Background(), c.CertNumber, "  ")
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, model.StatusIssued, f.status(t, c.CertNumber))
}

func TestUpdateSettings_KeepsWatermark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	cfg, err := f.config.Load()
	require.NoError(t, err)
	cfg.Mailbox.LastUID = 77
	require.NoError(t, f.config.Save(cfg))

	next := cfg.Clone()
	next.Mailbox.LastUID = 0
	next.Mailbox.Folder = "Signatures"
	next.Policy.RequireFromMatch = false
	require.NoError(t, f.ledger.UpdateSettings(ctx, next, "admin"))

	saved, err := f.ledger.Settings()
	require.NoError(t, err)
	assert.Equal(t, uint32(77), saved.Mailbox.LastUID)
	assert.Equal(t, "Signatures", saved.Mailbox.Folder)
	assert.False(t, saved.Policy.RequireFromMatch)

	updates := f.audits(t, model.ActionUpdateSettings)
	require.Len(t, updates, 1)
	assert.Equal(t, model.EntitySettings, updates[0].EntityType)
}

func TestUpdateSettings_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cfg, err := f.ledger.Settings()
	require.NoError(t, err)
	cfg.Mailbox.IMAPPort = 0
	assert.ErrorIs(t, f.ledger.UpdateSettings(context.Background(), cfg, "admin"), service.ErrValidation)

	cfg, err = f.ledger.Settings()
	require.NoError(t, err)
	cfg.Mailbox.Account = "registry"
	assert.ErrorIs(t, f.ledger.UpdateSettings(context.Background(), cfg, "admin"), service.ErrValidation)
}

// fetchHookDialer runs beforeFetch ahead of every Fetch on its sessions.
type fetchHookDialer struct {
	mailbox.Dialer
	beforeFetch func()
}

func (d fetchHookDialer) Dial(ctx context.Context, acct mailbox.Account) (mailbox.Session, error) {
	sess, err := d.Dialer.Dial(ctx, acct)
	if err != nil {
		return nil, err
	}
	return fetchHookSession{Session: sess, beforeFetch: d.beforeFetch}, nil
}

type fetchHookSession struct {
	mailbox.Session
	beforeFetch func()
}

func (s fetchHookSession) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	s.beforeFetch()
	return s.Session.Fetch(ctx, uid)
}

func TestUpdateSettings_DuringScanSurvivesWatermarkSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.box.Put(1, []byte("From: bob@example.com\r\nSubject: hello\r\n\r\nhi\r\n"))

	var ledger *service.Ledger
	d := fetchHookDialer{Dialer: f.box, beforeFetch: func() {
		cfg, err := ledger.Settings()
		require.NoError(t, err)
		cfg.Scan.PollIntervalSec = 42
		require.NoError(t, ledger.UpdateSettings(ctx, cfg, "admin"))
	}}
	ledger = service.New(service.Options{
		Store:   f.store,
		Config:  f.config,
		Vault:   f.vault,
		Dialer:  d,
		Sender:  f.box,
		Logger:  zaptest.NewLogger(t),
		Now:     func() time.Time { return now },
		NewUUID: func() string { return "scan-1" },
	})

	res, err := ledger.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	saved, err := ledger.Settings()
	require.NoError(t, err)
	assert.Equal(t, 42, saved.Scan.PollIntervalSec)
	assert.Equal(t, uint32(1), saved.Mailbox.LastUID)
	require.Len(t, f.audits(t, model.ActionUpdateSettings), 1)
}

func TestSetMailboxPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.SetMailboxPassword(ctx, "n3w-s3cret", "admin"))

	got, err := f.vault.Get(registry)
	require.NoError(t, err)
	assert.Equal(t, "n3w-s3cret", got)

	entries := f.audits(t, model.ActionSetEmailPassword)
	require.Len(t, entries, 1)
	assert.Equal(t, registry, entries[0].EntityID)
	assert.NotContains(t, entries[0].Message, "n3w-s3cret")
	assert.Nil(t, entries[0].AfterJSON)

	assert.ErrorIs(t, f.ledger.SetMailboxPassword(ctx, "", "admin"), service.ErrValidation)
}

func TestTestConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	for uid := uint32(1); uid <= 3; uid++ {
		f.box.Put(uid, []byte("Subject: hi\r\n\r\nbody\r\n"))
	}
	cfg, err := f.config.Load()
	require.NoError(t, err)
	cfg.Mailbox.LastUID = 1
	require.NoError(t, f.config.Save(cfg))

	got, err := f.ledger.TestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.ConnectionReport{
		Account: registry, Folder: "INBOX", Messages: 3, Unscanned: 2,
	}, got)

	f.box.DialErr = &mailbox.AuthError{Protocol: "imap", Account: registry, Message: "bad password"}
	_, err = f.ledger.TestConnection(ctx)
	assert.True(t, mailbox.IsAuthError(err))

	// Nothing is recorded.
	entries, err := f.store.ListEvidence(ctx, store.EvidenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTestConnection_NoPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.vault.Set(registry, ""))

	_, err := f.ledger.TestConnection(context.Background())
	assert.ErrorIs(t, err, service.ErrMailNotConfigured)
	assert.Zero(t, f.box.Dials())
}

func TestExportEvidenceReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	c := f.issue(t, "alice@example.com")
	require.NoError(t, f.ledger.ManualOverrideSign(ctx, c.CertNumber, "supervisor"))

	dir := t.TempDir()
	res, err := f.ledger.ExportEvidenceReport(ctx, c.CertNumber, dir, "auditor")
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256)
	assert.Equal(t, len(data), res.Bytes)

	exports := f.audits(t, model.ActionExportReport)
	require.Len(t, exports, 1)
	require.NotNil(t, exports[0].AfterJSON)
	assert.Contains(t, *exports[0].AfterJSON, res.SHA256)
	assert.Equal(t, "auditor", exports[0].Actor)
}
