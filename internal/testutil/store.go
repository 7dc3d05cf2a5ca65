// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// FixedTime is the reference instant used by fixtures.
var FixedTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// SeedPerson inserts a person with the given id suffix and email.
func SeedPerson(t *testing.T, s store.Store, seq int, email string) model.Person {
	t.Helper()

	p := model.Person{
		PersonID:  fmt.Sprintf("P-%06d", seq),
		GovID:     fmt.Sprintf("GOV-%d", seq),
		FirstName: fmt.Sprintf("First%d", seq),
		LastName:  fmt.Sprintf("Last%d", seq),
		Email:     email,
		CreatedAt: FixedTime,
		UpdatedAt: FixedTime,
	}
	if err := s.CreatePerson(context.Background(), p); err != nil {
		t.Fatalf("seeding person %s: %v", p.PersonID, err)
	}
	return p
}

// SeedCertificate inserts a certificate between receiver and giver in
// the given status. A non-empty code is stored as the sign code.
func SeedCertificate(
	t *testing.T, s store.Store, number string,
	receiver, giver model.Person,
	status model.CertificateStatus, code string,
) model.Certificate {
	t.Helper()

	c := model.Certificate{
		CertNumber:       number,
		CertType:         "Training",
		ReceiverID:       receiver.PersonID,
		GiverID:          giver.PersonID,
		ReceiverNameUsed: receiver.FullName(),
		GiverNameUsed:    giver.FullName(),
		IssuedAt:         FixedTime,
		ValidUntil:       FixedTime.AddDate(1, 0, 0),
		Status:           status,
		CreatedAt:        FixedTime,
		UpdatedAt:        FixedTime,
	}
	if code != "" {
		requested := FixedTime.Add(time.Hour)
		c.SignCode = &code
		c.SignRequestedAt = &requested
	}
	if err := s.CreateCertificate(context.Background(), c); err != nil {
		t.Fatalf("seeding certificate %s: %v", number, err)
	}
	return c
}
