package service

import (
	"context"
	"fmt"

	"github.com/nhle/certledger/internal/ledger"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
)

// VerifyReport is the integrity status of both ledgers.
type VerifyReport struct {
	Evidence ledger.Result `json:"evidence" yaml:"evidence"`
	Audit    ledger.Result `json:"audit" yaml:"audit"`
}

// OK reports whether both chains are intact.
func (r VerifyReport) OK() bool {
	return r.Evidence.OK && r.Audit.OK
}

// ListEvidence returns evidence newest first.
func (l *Ledger) ListEvidence(ctx context.Context, filter store.EvidenceFilter) ([]model.EmailEvidence, error) {
	return l.store.ListEvidence(ctx, filter)
}

// ListAudit returns audit entries newest first.
func (l *Ledger) ListAudit(ctx context.Context, filter store.AuditFilter) ([]model.AuditLogEntry, error) {
	return l.store.ListAudit(ctx, filter)
}

// VerifyLedgers recomputes both hash chains from storage.
func (l *Ledger) VerifyLedgers(ctx context.Context) (VerifyReport, error) {
	ev, err := l.store.EvidenceChain(ctx)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("reading evidence chain: %w", err)
	}
	audit, err := l.store.AuditChain(ctx)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("reading audit chain: %w", err)
	}
	return VerifyReport{
		Evidence: ledger.VerifyEvidence(ev),
		Audit:    ledger.VerifyAudit(audit),
	}, nil
}
