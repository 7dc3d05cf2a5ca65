// Package ledger computes and verifies the hash chains that make the
// evidence and audit tables tamper-evident.
//
// Every row stores the chain hash of its predecessor (prev_hash) and its
// own chain hash, computed over prev_hash and the row's content fields.
// Rewriting any row breaks either its own hash or its successor's link.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/certledger/internal/model"
)

// Text hashes the parts joined by newlines and returns lowercase hex.
func Text(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h[:])
}

// BodyHash is the content hash stored for a normalized message body.
func BodyHash(body string) string {
	h := sha256.Sum256([]byte(body))
	return hex.EncodeToString(h[:])
}

// EvidenceHash returns the chain hash for e linked to prev.
func EvidenceHash(prev string, e *model.EmailEvidence) string {
	return Text(
		prev,
		deref(e.CertNumber),
		stamp(e.ReceivedAt),
		e.FromEmail,
		e.Subject,
		e.BodyHash,
		deref(e.MessageID),
		strconv.FormatBool(e.Matched),
		e.Notes,
		strconv.FormatUint(uint64(e.MailboxUID), 10),
		e.ScanID,
		e.DecodeWarnings,
	)
}

// AuditHash returns the chain hash for a linked to prev.
func AuditHash(prev string, a *model.AuditLogEntry) string {
	return Text(
		prev,
		stamp(a.TS),
		a.Actor,
		a.Action,
		a.EntityType,
		a.EntityID,
		deref(a.BeforeJSON),
		deref(a.AfterJSON),
		a.Result,
		a.Message,
	)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
