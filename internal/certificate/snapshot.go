package certificate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/certledger/internal/model"
)

// snapshot is the audit view of a certificate. The sign code is always
// redacted so audit rows never carry a usable code.
type snapshot struct {
	CertNumber      string                  `json:"cert_number"`
	Status          model.CertificateStatus `json:"status"`
	ReceiverID      string                  `json:"receiver_id"`
	GiverID         string                  `json:"giver_id"`
	SignCode        string                  `json:"sign_code,omitempty"`
	SignRequestedAt *time.Time              `json:"sign_requested_at,omitempty"`
	SignedAt        *time.Time              `json:"signed_at,omitempty"`
	SignedMethod    *model.SignMethod       `json:"signed_method,omitempty"`
	SignedBy        *string                 `json:"signed_by,omitempty"`
}

// Snapshot serializes c for an audit before/after column.
func Snapshot(c model.Certificate) (*string, error) {
	s := snapshot{
		CertNumber:      c.CertNumber,
		Status:          c.Status,
		ReceiverID:      c.ReceiverID,
		GiverID:         c.GiverID,
		SignRequestedAt: utcPtr(c.SignRequestedAt),
		SignedAt:        utcPtr(c.SignedAt),
		SignedMethod:    c.SignedMethod,
		SignedBy:        c.SignedBy,
	}
	if code := c.CurrentSignCode(); code != "" {
		s.SignCode = RedactCode(code)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshotting certificate %s: %w", c.CertNumber, err)
	}
	out := string(data)
	return &out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
