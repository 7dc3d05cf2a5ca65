package model

import "time"

// CertificateStatus is the lifecycle state of a certificate.
type CertificateStatus string

const (
	StatusIssued        CertificateStatus = "ISSUED"
	StatusSignRequested CertificateStatus = "SIGN_REQUESTED"
	StatusSigned        CertificateStatus = "SIGNED"
)

// SignMethod records how a certificate reached SIGNED.
type SignMethod string

const (
	SignMethodEmail  SignMethod = "EMAIL"
	SignMethodManual SignMethod = "MANUAL"
)

// SystemActor is the actor recorded for engine-initiated actions.
const SystemActor = "system"

// Certificate links a receiver and a giver and tracks signature state.
type Certificate struct {
	CertNumber       string            `json:"cert_number" yaml:"cert_number" db:"cert_number"`
	CertType         string            `json:"cert_type" yaml:"cert_type" db:"cert_type"`
	ReceiverID       string            `json:"receiver_id" yaml:"receiver_id" db:"receiver_id"`
	GiverID          string            `json:"giver_id" yaml:"giver_id" db:"giver_id"`
	ReceiverNameUsed string            `json:"receiver_name_used" yaml:"receiver_name_used" db:"receiver_name_used"`
	GiverNameUsed    string            `json:"giver_name_used" yaml:"giver_name_used" db:"giver_name_used"`
	IssuedAt         time.Time         `json:"issued_at" yaml:"issued_at" db:"issued_at"`
	ValidUntil       time.Time         `json:"valid_until" yaml:"valid_until" db:"valid_until"`
	Status           CertificateStatus `json:"status" yaml:"status" db:"status"`
	SignCode         *string           `json:"sign_code,omitempty" yaml:"sign_code,omitempty" db:"sign_code"`
	SignRequestedAt  *time.Time        `json:"sign_requested_at,omitempty" yaml:"sign_requested_at,omitempty" db:"sign_requested_at"`
	SignedAt         *time.Time        `json:"signed_at,omitempty" yaml:"signed_at,omitempty" db:"signed_at"`
	SignedMethod     *SignMethod       `json:"signed_method,omitempty" yaml:"signed_method,omitempty" db:"signed_method"`
	SignedBy         *string           `json:"signed_by,omitempty" yaml:"signed_by,omitempty" db:"signed_by"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// CurrentSignCode returns the stored sign code or "" when none was issued.
func (c *Certificate) CurrentSignCode() string {
	if c.SignCode == nil {
		return ""
	}
	return *c.SignCode
}

// Person is a receiver or giver on file. Email is the only address the
// signature matcher accepts confirmations from.
type Person struct {
	PersonID  string    `json:"person_id" yaml:"person_id" db:"person_id"`
	GovID     string    `json:"gov_id" yaml:"gov_id" db:"gov_id"`
	FirstName string    `json:"first_name" yaml:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" yaml:"last_name" db:"last_name"`
	Email     string    `json:"email" yaml:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// FullName returns "First Last".
func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
