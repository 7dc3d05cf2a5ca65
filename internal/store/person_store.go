package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/certledger/internal/model"
)

const personColumns = `person_id, gov_id, first_name, last_name, email, created_at, updated_at`

// NextPersonSequence returns the next free numeric suffix for a P-NNNNNN id.
func (q *queries) NextPersonSequence(ctx context.Context) (int, error) {
	var maxSeq int
	err := sqlx.GetContext(ctx, q.ext, &maxSeq,
		"SELECT COALESCE(MAX(CAST(substr(person_id, 3) AS INTEGER)), 0) FROM persons")
	if err != nil {
		return 0, fmt.Errorf("getting max person sequence: %w", err)
	}
	return maxSeq + 1, nil
}

// CreatePerson inserts a person. The caller assigns PersonID.
func (q *queries) CreatePerson(ctx context.Context, p model.Person) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PersonID, p.GovID, p.FirstName, p.LastName, p.Email,
		utc(p.CreatedAt), utc(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("person with gov id %q: %w", p.GovID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("creating person %s: %w", p.PersonID, err)
	}
	return nil
}

// UpdatePerson replaces the mutable fields of an existing person.
func (q *queries) UpdatePerson(ctx context.Context, p model.Person) error {
	result, err := q.ext.ExecContext(ctx, `
		UPDATE persons SET
			gov_id = ?, first_name = ?, last_name = ?, email = ?, updated_at = ?
		WHERE person_id = ?`,
		p.GovID, p.FirstName, p.LastName, p.Email, utc(p.UpdatedAt),
		p.PersonID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("person with gov id %q: %w", p.GovID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("updating person %s: %w", p.PersonID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("person %s: %w", p.PersonID, ErrNotFound)
	}
	return nil
}

// GetPerson retrieves a person by id.
func (q *queries) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	var p model.Person
	err := sqlx.GetContext(ctx, q.ext, &p,
		"SELECT "+personColumns+" FROM persons WHERE person_id = ?", personID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting person %s: %w", personID, err)
	}
	return &p, nil
}

// ListPersons returns all persons ordered by id.
func (q *queries) ListPersons(ctx context.Context) ([]model.Person, error) {
	var persons []model.Person
	err := sqlx.SelectContext(ctx, q.ext, &persons,
		"SELECT "+personColumns+" FROM persons ORDER BY person_id")
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	return persons, nil
}
