package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/certificate"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
)

// CertificateInput describes a certificate to issue. Empty names default
// to the persons' full names; a zero IssuedAt means now. ValidUntil wins
// over ValidDays when both are set.
type CertificateInput struct {
	CertType         string
	ReceiverID       string
	GiverID          string
	ReceiverNameUsed string
	GiverNameUsed    string
	IssuedAt         time.Time
	ValidUntil       time.Time
	ValidDays        int
}

// IssueCertificate stores a new ISSUED certificate numbered
// C-<year>-<seq> for the year it is issued in.
func (l *Ledger) IssueCertificate(ctx context.Context, in CertificateInput, actor string) (model.Certificate, error) {
	actor = actorOrSystem(actor)
	now := l.now()

	in.CertType = strings.TrimSpace(in.CertType)
	if in.CertType == "" {
		return model.Certificate{}, validationf("certificate type is required")
	}
	if in.IssuedAt.IsZero() {
		in.IssuedAt = now
	}
	if in.ValidUntil.IsZero() {
		if in.ValidDays <= 0 {
			return model.Certificate{}, validationf("valid until or a positive validity in days is required")
		}
		in.ValidUntil = in.IssuedAt.AddDate(0, 0, in.ValidDays)
	}
	if in.ValidUntil.Before(in.IssuedAt) {
		return model.Certificate{}, validationf("valid until %s is before issue date %s",
			in.ValidUntil.Format(time.DateOnly), in.IssuedAt.Format(time.DateOnly))
	}

	var c model.Certificate
	err := l.store.WithTx(ctx, func(q store.Querier) error {
		receiver, err := lookupPerson(ctx, q, "receiver", in.ReceiverID)
		if err != nil {
			return err
		}
		giver, err := lookupPerson(ctx, q, "giver", in.GiverID)
		if err != nil {
			return err
		}

		year := in.IssuedAt.UTC().Year()
		seq, err := q.NextCertSequence(ctx, year)
		if err != nil {
			return err
		}

		c = model.Certificate{
			CertNumber:       certificate.FormatCertNumber(year, seq),
			CertType:         in.CertType,
			ReceiverID:       receiver.PersonID,
			GiverID:          giver.PersonID,
			ReceiverNameUsed: nameOr(in.ReceiverNameUsed, receiver.FullName()),
			GiverNameUsed:    nameOr(in.GiverNameUsed, giver.FullName()),
			IssuedAt:         in.IssuedAt,
			ValidUntil:       in.ValidUntil,
			Status:           model.StatusIssued,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := q.CreateCertificate(ctx, c); err != nil {
			return err
		}

		after, err := certificate.Snapshot(c)
		if err != nil {
			return err
		}
		return q.AppendAudit(ctx, &model.AuditLogEntry{
			TS:         now,
			Actor:      actor,
			Action:     model.ActionCreateCert,
			EntityType: model.EntityCert,
			EntityID:   c.CertNumber,
			AfterJSON:  after,
			Result:     model.ResultOK,
			Message:    "certificate created",
		})
	})
	if err != nil {
		return model.Certificate{}, fmt.Errorf("issuing certificate: %w", err)
	}

	l.logger.Info("certificate issued",
		zap.String("cert", c.CertNumber),
		zap.String("actor", actor),
	)
	return c, nil
}

// GetCertificate returns one certificate.
func (l *Ledger) GetCertificate(ctx context.Context, certNumber string) (*model.Certificate, error) {
	return l.store.GetCertificate(ctx, certNumber)
}

// ListCertificates returns certificates newest first.
func (l *Ledger) ListCertificates(ctx context.Context, filter store.CertificateFilter) ([]model.Certificate, error) {
	return l.store.ListCertificates(ctx, filter)
}

func lookupPerson(ctx context.Context, q store.Querier, role, id string) (*model.Person, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationf("%s is required", role)
	}
	p, err := q.GetPerson(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, validationf("%s %s does not exist", role, id)
	}
	return p, err
}

func nameOr(name, fallback string) string {
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return fallback
}
