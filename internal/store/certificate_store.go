package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/certledger/internal/model"
)

const certColumns = `cert_number, cert_type, receiver_id, giver_id,
	receiver_name_used, giver_name_used, issued_at, valid_until,
	status, sign_code, sign_requested_at, signed_at, signed_method, signed_by,
	created_at, updated_at`

// NextCertSequence returns the next free sequence for C-<year>-NNNNNN.
// Call it inside the transaction that inserts the certificate.
func (q *queries) NextCertSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("C-%04d-", year)
	var maxSeq int
	err := sqlx.GetContext(ctx, q.ext, &maxSeq, `
		SELECT COALESCE(MAX(CAST(substr(cert_number, ?) AS INTEGER)), 0)
		FROM certificates WHERE cert_number LIKE ?`,
		len(prefix)+1, prefix+"%",
	)
	if err != nil {
		return 0, fmt.Errorf("getting max cert sequence for %d: %w", year, err)
	}
	return maxSeq + 1, nil
}

// CreateCertificate inserts a certificate. The caller assigns CertNumber.
func (q *queries) CreateCertificate(ctx context.Context, c model.Certificate) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO certificates (`+certColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CertNumber, c.CertType, c.ReceiverID, c.GiverID,
		c.ReceiverNameUsed, c.GiverNameUsed, utc(c.IssuedAt), utc(c.ValidUntil),
		string(c.Status), c.SignCode, utcPtr(c.SignRequestedAt), utcPtr(c.SignedAt),
		c.SignedMethod, c.SignedBy,
		utc(c.CreatedAt), utc(c.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("certificate %s: %w", c.CertNumber, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("creating certificate %s: %w", c.CertNumber, err)
	}
	return nil
}

// GetCertificate retrieves a certificate by number.
func (q *queries) GetCertificate(ctx context.Context, certNumber string) (*model.Certificate, error) {
	var c model.Certificate
	err := sqlx.GetContext(ctx, q.ext, &c,
		"SELECT "+certColumns+" FROM certificates WHERE cert_number = ?", certNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certificate %s: %w", certNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting certificate %s: %w", certNumber, err)
	}
	return &c, nil
}

// FindSignRequested returns the certificate numbered exactly certNumber
// when it is awaiting a signature, and ErrNotFound otherwise.
func (q *queries) FindSignRequested(ctx context.Context, certNumber string) (*model.Certificate, error) {
	var c model.Certificate
	err := sqlx.GetContext(ctx, q.ext, &c,
		"SELECT "+certColumns+" FROM certificates WHERE cert_number = ? AND status = ?",
		certNumber, string(model.StatusSignRequested))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sign-requested certificate %q: %w", certNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding sign-requested certificate %q: %w", certNumber, err)
	}
	return &c, nil
}

// ListCertificates returns certificates newest first.
func (q *queries) ListCertificates(ctx context.Context, filter CertificateFilter) ([]model.Certificate, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions,
			"(cert_number LIKE ? OR cert_type LIKE ? OR receiver_name_used LIKE ? OR giver_name_used LIKE ?)")
		like := "%" + *filter.Query + "%"
		args = append(args, like, like, like, like)
	}

	query := "SELECT " + certColumns + " FROM certificates"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY issued_at DESC, cert_number DESC"

	page, args := pageClause(filter.Limit, filter.Offset, args)
	query += page

	var certs []model.Certificate
	if err := sqlx.SelectContext(ctx, q.ext, &certs, query, args...); err != nil {
		return nil, fmt.Errorf("listing certificates: %w", err)
	}
	return certs, nil
}

// SaveTransition writes the lifecycle fields of c, but only while the
// stored status is one of from. A concurrent change yields ErrStaleState.
func (q *queries) SaveTransition(ctx context.Context, c model.Certificate, from ...model.CertificateStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("saving transition for %s: no source states given", c.CertNumber)
	}

	placeholders := make([]string, len(from))
	args := []interface{}{
		string(c.Status), c.SignCode, utcPtr(c.SignRequestedAt), utcPtr(c.SignedAt),
		c.SignedMethod, c.SignedBy, utc(c.UpdatedAt),
		c.CertNumber,
	}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	result, err := q.ext.ExecContext(ctx, `
		UPDATE certificates SET
			status = ?, sign_code = ?, sign_requested_at = ?, signed_at = ?,
			signed_method = ?, signed_by = ?, updated_at = ?
		WHERE cert_number = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating certificate %s: %w", c.CertNumber, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("certificate %s: %w", c.CertNumber, ErrStaleState)
	}
	return nil
}
