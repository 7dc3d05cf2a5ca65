package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/certledger/internal/ledger"
	"github.com/nhle/certledger/internal/model"
)

const evidenceColumns = `id, cert_number, received_at, from_email, subject, body_hash,
	message_id, matched, notes, mailbox_uid, scan_id, decode_warnings,
	prev_hash, chain_hash`

const auditColumns = `id, ts, actor, action, entity_type, entity_id,
	before_json, after_json, result, message, prev_hash, chain_hash`

// AppendEvidence links e to the current chain head and inserts it.
// ID, PrevHash and ChainHash are filled in on success.
func (q *queries) AppendEvidence(ctx context.Context, e *model.EmailEvidence) error {
	prev, err := q.chainHead(ctx, "email_evidence")
	if err != nil {
		return err
	}

	e.ReceivedAt = utc(e.ReceivedAt)
	e.PrevHash = prev
	e.ChainHash = ledger.EvidenceHash(prev, e)

	result, err := q.ext.ExecContext(ctx, `
		INSERT INTO email_evidence (
			cert_number, received_at, from_email, subject, body_hash,
			message_id, matched, notes, mailbox_uid, scan_id, decode_warnings,
			prev_hash, chain_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CertNumber, e.ReceivedAt, e.FromEmail, e.Subject, e.BodyHash,
		e.MessageID, boolToInt(e.Matched), e.Notes, int64(e.MailboxUID), e.ScanID, e.DecodeWarnings,
		e.PrevHash, e.ChainHash,
	)
	if err != nil {
		return fmt.Errorf("appending evidence: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading evidence id: %w", err)
	}
	e.ID = id
	return nil
}

// ListEvidence returns evidence rows newest first.
func (q *queries) ListEvidence(ctx context.Context, filter EvidenceFilter) ([]model.EmailEvidence, error) {
	var conditions []string
	var args []interface{}

	if filter.CertNumber != nil {
		conditions = append(conditions, "cert_number = ?")
		args = append(args, *filter.CertNumber)
	}
	if filter.Matched != nil {
		conditions = append(conditions, "matched = ?")
		args = append(args, boolToInt(*filter.Matched))
	}

	query := "SELECT " + evidenceColumns + " FROM email_evidence"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC"

	page, args := pageClause(filter.Limit, filter.Offset, args)
	query += page

	var rows []model.EmailEvidence
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}
	return rows, nil
}

// CountEvidence returns the number of evidence rows.
func (q *queries) CountEvidence(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.ext, &n, "SELECT COUNT(*) FROM email_evidence"); err != nil {
		return 0, fmt.Errorf("counting evidence: %w", err)
	}
	return n, nil
}

// EvidenceChain returns every evidence row in insertion order.
func (q *queries) EvidenceChain(ctx context.Context) ([]model.EmailEvidence, error) {
	var rows []model.EmailEvidence
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		"SELECT "+evidenceColumns+" FROM email_evidence ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("reading evidence chain: %w", err)
	}
	return rows, nil
}

// AppendAudit links a to the current chain head and inserts it.
// ID, PrevHash and ChainHash are filled in on success.
func (q *queries) AppendAudit(ctx context.Context, a *model.AuditLogEntry) error {
	prev, err := q.chainHead(ctx, "audit_log")
	if err != nil {
		return err
	}

	a.TS = utc(a.TS)
	a.PrevHash = prev
	a.ChainHash = ledger.AuditHash(prev, a)

	result, err := q.ext.ExecContext(ctx, `
		INSERT INTO audit_log (
			ts, actor, action, entity_type, entity_id,
			before_json, after_json, result, message,
			prev_hash, chain_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TS, a.Actor, a.Action, a.EntityType, a.EntityID,
		a.BeforeJSON, a.AfterJSON, a.Result, a.Message,
		a.PrevHash, a.ChainHash,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry %s: %w", a.Action, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading audit id: %w", err)
	}
	a.ID = id
	return nil
}

// ListAudit returns audit rows newest first.
func (q *queries) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditLogEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.EntityType != nil {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, *filter.EntityType)
	}
	if filter.EntityID != nil {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, *filter.EntityID)
	}
	if filter.Action != nil {
		conditions = append(conditions, "action = ?")
		args = append(args, *filter.Action)
	}

	query := "SELECT " + auditColumns + " FROM audit_log"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"

	page, args := pageClause(filter.Limit, filter.Offset, args)
	query += page

	var rows []model.AuditLogEntry
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return rows, nil
}

// CountAudit returns the number of audit rows.
func (q *queries) CountAudit(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.ext, &n, "SELECT COUNT(*) FROM audit_log"); err != nil {
		return 0, fmt.Errorf("counting audit log: %w", err)
	}
	return n, nil
}

// AuditChain returns every audit row in insertion order.
func (q *queries) AuditChain(ctx context.Context) ([]model.AuditLogEntry, error) {
	var rows []model.AuditLogEntry
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		"SELECT "+auditColumns+" FROM audit_log ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("reading audit chain: %w", err)
	}
	return rows, nil
}

// chainHead returns the chain hash of the newest row in table, or "".
func (q *queries) chainHead(ctx context.Context, table string) (string, error) {
	var head string
	err := sqlx.GetContext(ctx, q.ext, &head,
		"SELECT chain_hash FROM "+table+" ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s chain head: %w", table, err)
	}
	return head, nil
}

// AppendEvidence on the store runs in its own transaction so the chain
// head read and the insert cannot interleave with another writer.
func (s *SQLiteStore) AppendEvidence(ctx context.Context, e *model.EmailEvidence) error {
	return s.WithTx(ctx, func(q Querier) error {
		return q.AppendEvidence(ctx, e)
	})
}

// AppendAudit on the store runs in its own transaction; see AppendEvidence.
func (s *SQLiteStore) AppendAudit(ctx context.Context, a *model.AuditLogEntry) error {
	return s.WithTx(ctx, func(q Querier) error {
		return q.AppendAudit(ctx, a)
	})
}
