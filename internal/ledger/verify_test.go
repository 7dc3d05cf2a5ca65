package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/certledger/internal/model"
)

func strPtr(s string) *string { return &s }

func buildEvidenceChain(n int) []model.EmailEvidence {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := make([]model.EmailEvidence, n)
	prev := ""
	for i := range rows {
		rows[i] = model.EmailEvidence{
			ID:         int64(i + 1),
			CertNumber: strPtr("C-2025-000001"),
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			FromEmail:  "alice@example.com",
			Subject:    "C-2025-000001",
			BodyHash:   BodyHash("S-AB12CD34"),
			Notes:      model.ReasonCodeMismatch,
			MailboxUID: uint32(i + 10),
			ScanID:     "scan-1",
			PrevHash:   prev,
		}
		rows[i].ChainHash = EvidenceHash(prev, &rows[i])
		prev = rows[i].ChainHash
	}
	return rows
}

func TestVerifyEvidence_IntactChain(t *testing.T) {
	t.Parallel()

	rows := buildEvidenceChain(4)
	res := VerifyEvidence(rows)

	assert.True(t, res.OK)
	assert.Equal(t, 4, res.Total)
	assert.Zero(t, res.Failed)
	assert.Equal(t, rows[3].ChainHash, res.LastChainHash)
}

func TestVerifyEvidence_EmptyChain(t *testing.T) {
	t.Parallel()

	res := VerifyEvidence(nil)
	assert.True(t, res.OK)
	assert.Zero(t, res.Total)
}

func TestVerifyEvidence_EditedContentIsLocalized(t *testing.T) {
	t.Parallel()

	rows := buildEvidenceChain(4)
	rows[1].Matched = true
	rows[1].Notes = model.ReasonMatched

	res := VerifyEvidence(rows)

	require.False(t, res.OK)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, int64(2), res.Failures[0].RowID)
	assert.True(t, res.Failures[0].ChainHashMismatch)
	assert.False(t, res.Failures[0].PrevHashMismatch)
	assert.Equal(t, 1, res.ChainHashFailed)
	assert.Zero(t, res.PrevHashFailed)
}

func TestVerifyEvidence_RewrittenHashBreaksNextLink(t *testing.T) {
	t.Parallel()

	rows := buildEvidenceChain(3)
	rows[0].Subject = "C-2025-000009"
	rows[0].ChainHash = EvidenceHash("", &rows[0])

	res := VerifyEvidence(rows)

	require.False(t, res.OK)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.True(t, res.Failures[0].PrevHashMismatch)
	assert.Equal(t, "prev_hash mismatch", res.Failures[0].Message)
}

func TestVerifyEvidence_DeletedRowDetected(t *testing.T) {
	t.Parallel()

	rows := buildEvidenceChain(3)
	rows = append(rows[:1], rows[2:]...)

	res := VerifyEvidence(rows)

	assert.False(t, res.OK)
	assert.Equal(t, 1, res.PrevHashFailed)
}

func TestVerifyAudit(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []model.AuditLogEntry{
		{ID: 1, TS: ts, Actor: model.SystemActor, Action: model.ActionConfirmSign, EntityType: model.EntityCert, EntityID: "C-2025-000001", AfterJSON: strPtr(`{"status":"SIGNED"}`), Result: model.ResultOK, Message: "confirmed via email"},
		{ID: 2, TS: ts.Add(time.Second), Actor: "admin", Action: model.ActionManualSign, EntityType: model.EntityCert, EntityID: "C-2025-000002", Result: model.ResultOK},
	}
	prev := ""
	for i := range rows {
		rows[i].PrevHash = prev
		rows[i].ChainHash = AuditHash(prev, &rows[i])
		prev = rows[i].ChainHash
	}

	require.True(t, VerifyAudit(rows).OK)

	rows[0].Actor = "mallory"
	res := VerifyAudit(rows)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.ChainHashFailed)
}

func TestTimestampZoneDoesNotAffectHash(t *testing.T) {
	t.Parallel()

	utc := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("X", 3*3600))

	a := model.AuditLogEntry{TS: utc, Action: model.ActionCreateCert}
	b := model.AuditLogEntry{TS: local, Action: model.ActionCreateCert}

	assert.Equal(t, AuditHash("p", &a), AuditHash("p", &b))
}

func TestBodyHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		BodyHash(""),
	)
	assert.NotEqual(t, BodyHash("S-AB12CD34"), BodyHash("S-AB12CD34 "))
}
