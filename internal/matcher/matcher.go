// Package matcher decides, for one normalized inbound message, whether it
// confirms an outstanding sign request.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/certificate"
	"github.com/nhle/certledger/internal/ledger"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/normalize"
	"github.com/nhle/certledger/internal/store"
)

// Policy holds the matching rules read from configuration.
type Policy struct {
	// RequireFromMatch restricts confirmations to the receiver's and
	// giver's addresses on file.
	RequireFromMatch bool
}

// Outcome is the per-message verdict. It never aborts a scan.
type Outcome struct {
	// CertNumber is empty when no candidate certificate was found.
	CertNumber string
	Matched    bool
	Reason     string
	EvidenceID int64
}

// Envelope identifies where a message came from within a scan.
type Envelope struct {
	UID    uint32
	ScanID string
}

// Matcher applies the decision procedure and records its evidence.
type Matcher struct {
	store  store.Store
	policy Policy
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Matcher. A nil logger disables logging.
func New(s store.Store, policy Policy, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		store:  s,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// Process decides msg in a single transaction: the evidence row, the
// certificate transition, and the audit entry commit together or not at
// all. An error means nothing was written.
func (m *Matcher) Process(ctx context.Context, msg normalize.Message, env Envelope) (Outcome, error) {
	var out Outcome
	err := m.store.WithTx(ctx, func(q store.Querier) error {
		var err error
		out, err = m.decide(ctx, q, msg, env)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("deciding message uid %d: %w", env.UID, err)
	}

	fields := []zap.Field{
		zap.Uint32("uid", env.UID),
		zap.String("cert", out.CertNumber),
		zap.String("from", msg.Sender),
		zap.String("reason", out.Reason),
		zap.Int64("evidence_id", out.EvidenceID),
	}
	if out.Matched {
		m.logger.Info("signature confirmed", fields...)
	} else {
		m.logger.Debug("message rejected", fields...)
	}
	return out, nil
}

func (m *Matcher) decide(ctx context.Context, q store.Querier, msg normalize.Message, env Envelope) (Outcome, error) {
	now := m.now()
	ev := &model.EmailEvidence{
		ReceivedAt:     now,
		FromEmail:      msg.Sender,
		Subject:        msg.Subject,
		BodyHash:       ledger.BodyHash(msg.Body),
		MailboxUID:     env.UID,
		ScanID:         env.ScanID,
		DecodeWarnings: msg.WarningText(),
	}
	if msg.MessageID != "" {
		id := msg.MessageID
		ev.MessageID = &id
	}

	// 1. Candidate: exact subject, awaiting signature.
	cert, err := q.FindSignRequested(ctx, msg.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return record(ctx, q, ev, model.ReasonNoCandidate)
	}
	if err != nil {
		return Outcome{}, err
	}
	number := cert.CertNumber
	ev.CertNumber = &number

	// 2. Authorization.
	if m.policy.RequireFromMatch {
		allowed, err := allowedSenders(ctx, q, cert)
		if err != nil {
			return Outcome{}, err
		}
		if len(allowed) == 0 {
			return record(ctx, q, ev, model.ReasonNoAuthorizedAddr)
		}
		if _, ok := allowed[msg.Sender]; !ok {
			return record(ctx, q, ev, model.ReasonSenderNotAllowed)
		}
	}

	// 3. Content: byte-exact against the current code.
	code := cert.CurrentSignCode()
	if code == "" || msg.Body != code {
		return record(ctx, q, ev, model.ReasonCodeMismatch)
	}

	// 4. Sign.
	next, err := certificate.ConfirmByEmail(*cert, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := q.SaveTransition(ctx, next, model.StatusSignRequested); err != nil {
		return Outcome{}, err
	}

	ev.Matched = true
	out, err := record(ctx, q, ev, model.ReasonMatched)
	if err != nil {
		return Outcome{}, err
	}

	before, err := certificate.Snapshot(*cert)
	if err != nil {
		return Outcome{}, err
	}
	after, err := certificate.Snapshot(next)
	if err != nil {
		return Outcome{}, err
	}
	err = q.AppendAudit(ctx, &model.AuditLogEntry{
		TS:         now,
		Actor:      model.SystemActor,
		Action:     model.ActionConfirmSign,
		EntityType: model.EntityCert,
		EntityID:   number,
		BeforeJSON: before,
		AfterJSON:  after,
		Result:     model.ResultOK,
		Message:    fmt.Sprintf("confirmed via email from %s (evidence #%d)", msg.Sender, out.EvidenceID),
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// record writes the single evidence row for this message.
func record(ctx context.Context, q store.Querier, ev *model.EmailEvidence, reason string) (Outcome, error) {
	ev.Notes = reason
	if err := q.AppendEvidence(ctx, ev); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Matched:    ev.Matched,
		Reason:     reason,
		EvidenceID: ev.ID,
	}
	if ev.CertNumber != nil {
		out.CertNumber = *ev.CertNumber
	}
	return out, nil
}

// allowedSenders returns the normalized, non-empty addresses of the
// receiver and giver on file.
func allowedSenders(ctx context.Context, q store.Querier, c *model.Certificate) (map[string]struct{}, error) {
	allowed := make(map[string]struct{}, 2)
	for _, id := range []string{c.ReceiverID, c.GiverID} {
		p, err := q.GetPerson(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading authorized person for %s: %w", c.CertNumber, err)
		}
		if addr := NormalizeAddress(p.Email); addr != "" {
			allowed[addr] = struct{}{}
		}
	}
	return allowed, nil
}

// NormalizeAddress lowercases and trims an address for comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
