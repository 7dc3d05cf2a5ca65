package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/certledger/internal/model"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStaleState is returned when a guarded status update matched no
	// row because the certificate is no longer in an expected state.
	ErrStaleState = errors.New("certificate state changed")
)

// CertificateFilter controls filtering and pagination for certificates.
type CertificateFilter struct {
	Status *model.CertificateStatus
	Query  *string // matches cert_number, cert_type, or names used
	Limit  int
	Offset int
}

// EvidenceFilter controls filtering and pagination for evidence reads.
// Results are always newest first.
type EvidenceFilter struct {
	CertNumber *string
	Matched    *bool
	Limit      int
	Offset     int
}

// AuditFilter controls filtering and pagination for audit reads.
// Results are always newest first.
type AuditFilter struct {
	EntityType *string
	EntityID   *string
	Action     *string
	Limit      int
	Offset     int
}

// Querier is the persistence surface shared by the database handle and
// an open transaction.
type Querier interface {
	// === Persons ===

	NextPersonSequence(ctx context.Context) (int, error)
	CreatePerson(ctx context.Context, p model.Person) error
	UpdatePerson(ctx context.Context, p model.Person) error
	GetPerson(ctx context.Context, personID string) (*model.Person, error)
	ListPersons(ctx context.Context) ([]model.Person, error)

	// === Certificates ===

	NextCertSequence(ctx context.Context, year int) (int, error)
	CreateCertificate(ctx context.Context, c model.Certificate) error
	GetCertificate(ctx context.Context, certNumber string) (*model.Certificate, error)
	FindSignRequested(ctx context.Context, certNumber string) (*model.Certificate, error)
	ListCertificates(ctx context.Context, filter CertificateFilter) ([]model.Certificate, error)
	SaveTransition(ctx context.Context, c model.Certificate, from ...model.CertificateStatus) error

	// === Evidence ledger (append-only) ===

	AppendEvidence(ctx context.Context, e *model.EmailEvidence) error
	ListEvidence(ctx context.Context, filter EvidenceFilter) ([]model.EmailEvidence, error)
	CountEvidence(ctx context.Context) (int, error)
	EvidenceChain(ctx context.Context) ([]model.EmailEvidence, error)

	// === Audit trail (append-only) ===

	AppendAudit(ctx context.Context, a *model.AuditLogEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditLogEntry, error)
	CountAudit(ctx context.Context) (int, error)
	AuditChain(ctx context.Context) ([]model.AuditLogEntry, error)
}

// Store defines the persistence interface for persons, certificates, and
// the evidence and audit ledgers.
type Store interface {
	Querier

	// WithTx runs fn inside one transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Querier) error) error

	Close() error
}

// utc normalizes a timestamp before it is written.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
