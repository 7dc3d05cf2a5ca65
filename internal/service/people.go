package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/certledger/internal/certificate"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
)

// PersonInput holds the editable fields of a person.
type PersonInput struct {
	GovID     string
	FirstName string
	LastName  string
	Email     string
}

func (in PersonInput) normalized() (PersonInput, error) {
	out := PersonInput{
		GovID:     strings.TrimSpace(in.GovID),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
	}
	switch {
	case out.GovID == "":
		return out, validationf("gov id is required")
	case out.FirstName == "":
		return out, validationf("first name is required")
	case out.LastName == "":
		return out, validationf("last name is required")
	}
	if out.Email != "" {
		addr, err := mail.ParseAddress(out.Email)
		if err != nil {
			return out, validationf("email %q is not a valid address", out.Email)
		}
		out.Email = strings.ToLower(addr.Address)
	}
	return out, nil
}

// CreatePerson validates in and stores a new person with the next free id.
func (l *Ledger) CreatePerson(ctx context.Context, in PersonInput, actor string) (model.Person, error) {
	in, err := in.normalized()
	if err != nil {
		return model.Person{}, err
	}
	actor = actorOrSystem(actor)
	now := l.now()

	var p model.Person
	err = l.store.WithTx(ctx, func(q store.Querier) error {
		seq, err := q.NextPersonSequence(ctx)
		if err != nil {
			return err
		}
		p = model.Person{
			PersonID:  certificate.FormatPersonID(seq),
			GovID:     in.GovID,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := q.CreatePerson(ctx, p); err != nil {
			return err
		}

		after, err := toJSON(p)
		if err != nil {
			return err
		}
		return q.AppendAudit(ctx, &model.AuditLogEntry{
			TS:         now,
			Actor:      actor,
			Action:     model.ActionCreatePerson,
			EntityType: model.EntityPerson,
			EntityID:   p.PersonID,
			AfterJSON:  after,
			Result:     model.ResultOK,
			Message:    "person created",
		})
	})
	if err != nil {
		return model.Person{}, fmt.Errorf("creating person: %w", err)
	}
	return p, nil
}

// UpdatePerson replaces the editable fields of personID, recording the
// before and after values. A failed edit is audited as an error.
func (l *Ledger) UpdatePerson(ctx context.Context, personID string, in PersonInput, actor string) (model.Person, error) {
	actor = actorOrSystem(actor)
	in, err := in.normalized()
	if err != nil {
		return model.Person{}, err
	}
	now := l.now()

	var p model.Person
	err = l.store.WithTx(ctx, func(q store.Querier) error {
		prev, err := q.GetPerson(ctx, personID)
		if err != nil {
			return err
		}
		p = *prev
		p.GovID = in.GovID
		p.FirstName = in.FirstName
		p.LastName = in.LastName
		p.Email = in.Email
		p.UpdatedAt = now
		if err := q.UpdatePerson(ctx, p); err != nil {
			return err
		}

		before, err := toJSON(prev)
		if err != nil {
			return err
		}
		after, err := toJSON(p)
		if err != nil {
			return err
		}
		return q.AppendAudit(ctx, &model.AuditLogEntry{
			TS:         now,
			Actor:      actor,
			Action:     model.ActionEditPerson,
			EntityType: model.EntityPerson,
			EntityID:   personID,
			BeforeJSON: before,
			AfterJSON:  after,
			Result:     model.ResultOK,
			Message:    "person edited",
		})
	})
	if err != nil {
		err = fmt.Errorf("updating person %s: %w", personID, err)
		l.auditError(ctx, actor, model.ActionEditPerson, model.EntityPerson, personID, err)
		return model.Person{}, err
	}
	return p, nil
}

// GetPerson returns one person.
func (l *Ledger) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	return l.store.GetPerson(ctx, personID)
}

// ListPersons returns all persons ordered by id.
func (l *Ledger) ListPersons(ctx context.Context) ([]model.Person, error) {
	return l.store.ListPersons(ctx)
}
