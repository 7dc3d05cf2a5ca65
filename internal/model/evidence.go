package model

import "time"

// Evidence reason codes written to EmailEvidence.Notes.
const (
	ReasonNoCandidate      = "no candidate"
	ReasonNoAuthorizedAddr = "no authorized address on file"
	ReasonSenderNotAllowed = "sender not authorized"
	ReasonCodeMismatch     = "code mismatch"
	ReasonMatched          = "signature matched"
)

// EmailEvidence is the permanent record of one inbound message the
// matcher considered, together with its verdict.
type EmailEvidence struct {
	ID             int64     `json:"id" yaml:"id" db:"id"`
	CertNumber     *string   `json:"cert_number,omitempty" yaml:"cert_number,omitempty" db:"cert_number"`
	ReceivedAt     time.Time `json:"received_at" yaml:"received_at" db:"received_at"`
	FromEmail      string    `json:"from_email" yaml:"from_email" db:"from_email"`
	Subject        string    `json:"subject" yaml:"subject" db:"subject"`
	BodyHash       string    `json:"body_hash" yaml:"body_hash" db:"body_hash"`
	MessageID      *string   `json:"message_id,omitempty" yaml:"message_id,omitempty" db:"message_id"`
	Matched        bool      `json:"matched" yaml:"matched" db:"matched"`
	Notes          string    `json:"notes" yaml:"notes" db:"notes"`
	MailboxUID     uint32    `json:"mailbox_uid" yaml:"mailbox_uid" db:"mailbox_uid"`
	ScanID         string    `json:"scan_id" yaml:"scan_id" db:"scan_id"`
	DecodeWarnings string    `json:"decode_warnings,omitempty" yaml:"decode_warnings,omitempty" db:"decode_warnings"`
	PrevHash       string    `json:"prev_hash" yaml:"prev_hash" db:"prev_hash"`
	ChainHash      string    `json:"chain_hash" yaml:"chain_hash" db:"chain_hash"`
}
