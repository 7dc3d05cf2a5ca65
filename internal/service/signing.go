package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/certificate"
	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/store"
)

// SignRequestSubject is the subject line of an outbound sign request.
func SignRequestSubject(certNumber string) string {
	return "SIGN REQUEST: " + certNumber
}

// SignRequestBody renders the instructions and certificate summary sent
// to the receiver.
func SignRequestBody(c model.Certificate, code string) string {
	var b strings.Builder
	b.WriteString("INSTRUCTIONS (IMPORTANT)\n")
	b.WriteString("1) Send a NEW email (do not reply).\n")
	fmt.Fprintf(&b, "2) Subject must be exactly: %s\n", c.CertNumber)
	fmt.Fprintf(&b, "3) Email body must contain ONLY this code (no extra text): %s\n\n", code)
	b.WriteString("Certificate summary:\n")
	fmt.Fprintf(&b, "Cert: %s\n", c.CertNumber)
	fmt.Fprintf(&b, "Type: %s\n", c.CertType)
	fmt.Fprintf(&b, "Issued: %s\n", c.IssuedAt.UTC().Format(time.DateOnly))
	fmt.Fprintf(&b, "Valid until: %s\n", c.ValidUntil.UTC().Format(time.DateOnly))
	fmt.Fprintf(&b, "Receiver: %s\n", c.ReceiverNameUsed)
	fmt.Fprintf(&b, "Giver: %s\n", c.GiverNameUsed)
	return b.String()
}

// RequestSignature issues a fresh sign code for certNumber and mails it
// to the receiver. The code is committed only after the send succeeds; a
// failed send leaves the certificate unchanged and is audited as an error.
// Re-requesting replaces the outstanding code.
func (l *Ledger) RequestSignature(ctx context.Context, certNumber, actor string) (string, error) {
	actor = actorOrSystem(actor)

	cert, err := l.store.GetCertificate(ctx, certNumber)
	if err != nil {
		return "", fmt.Errorf("requesting signature for %s: %w", certNumber, err)
	}

	code, err := certificate.NewSignCode()
	if err != nil {
		return "", err
	}
	now := l.now()
	next, err := certificate.RequestSignature(*cert, code, now)
	if err != nil {
		return "", err
	}

	receiver, err := l.store.GetPerson(ctx, cert.ReceiverID)
	if err != nil {
		return "", fmt.Errorf("loading receiver of %s: %w", certNumber, err)
	}
	to := strings.TrimSpace(receiver.Email)
	if to == "" {
		return "", fmt.Errorf("requesting signature for %s: %w", certNumber, ErrNoReceiverEmail)
	}

	cfg, err := l.config.Load()
	if err != nil {
		return "", fmt.Errorf("loading settings: %w", err)
	}
	acct, err := l.account(cfg)
	if err != nil {
		return "", fmt.Errorf("requesting signature for %s: %w", certNumber, err)
	}

	action := model.ActionSendSignEmail
	if cert.Status == model.StatusSignRequested {
		action = model.ActionReissueSignRequest
	}

	err = l.sender.Send(ctx, acct, mailbox.Outgoing{
		From:    cfg.Mailbox.Account,
		To:      to,
		Subject: SignRequestSubject(certNumber),
		Body:    SignRequestBody(next, code),
	})
	if err != nil {
		err = fmt.Errorf("sending sign request for %s to %s: %w", certNumber, to, err)
		l.auditError(ctx, actor, action, model.EntityCert, certNumber, err)
		l.logger.Error("sign request not sent", zap.String("cert", certNumber), zap.Error(err))
		return "", err
	}

	before, err := certificate.Snapshot(*cert)
	if err != nil {
		return "", err
	}
	after, err := certificate.Snapshot(next)
	if err != nil {
		return "", err
	}

	err = l.store.WithTx(ctx, func(q store.Querier) error {
		if err := q.SaveTransition(ctx, next, cert.Status); err != nil {
			return err
		}
		return q.AppendAudit(ctx, &model.AuditLogEntry{
			TS:         now,
			Actor:      actor,
			Action:     action,
			EntityType: model.EntityCert,
			EntityID:   certNumber,
			BeforeJSON: before,
			AfterJSON:  after,
			Result:     model.ResultOK,
			Message:    "sent to " + to,
		})
	})
	if err != nil {
		return "", fmt.Errorf("recording sign request for %s: %w", certNumber, err)
	}

	l.logger.Info("sign request sent",
		zap.String("cert", certNumber),
		zap.String("to", to),
		zap.String("action", action),
	)
	return code, nil
}

// ManualOverrideSign marks certNumber SIGNED on actor's authority. It is
// refused, and audited as an error, when the certificate is already
// signed.
func (l *Ledger) ManualOverrideSign(ctx context.Context, certNumber, actor string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return validationf("actor is required for a manual sign")
	}
	now := l.now()

	err := l.store.WithTx(ctx, func(q store.Querier) error {
		cert, err := q.GetCertificate(ctx, certNumber)
		if err != nil {
			return err
		}
		next, err := certificate.OverrideSign(*cert, actor, now)
		if err != nil {
			return err
		}
		if err := q.SaveTransition(ctx, next, certificate.OverridableFrom()...); err != nil {
			return err
		}

		before, err := certificate.Snapshot(*cert)
		if err != nil {
			return err
		}
		after, err := certificate.Snapshot(next)
		if err != nil {
			return err
		}
		return q.AppendAudit(ctx, &model.AuditLogEntry{
			TS:         now,
			Actor:      actor,
			Action:     model.ActionManualSign,
			EntityType: model.EntityCert,
			EntityID:   certNumber,
			BeforeJSON: before,
			AfterJSON:  after,
			Result:     model.ResultOK,
			Message:    "certificate manually marked as signed",
		})
	})
	if err != nil {
		err = fmt.Errorf("manual sign of %s: %w", certNumber, err)
		if !errors.Is(err, store.ErrNotFound) {
			l.auditError(ctx, actor, model.ActionManualSign, model.EntityCert, certNumber, err)
		}
		return err
	}

	l.logger.Info("certificate manually signed",
		zap.String("cert", certNumber),
		zap.String("actor", actor),
	)
	return nil
}

// account resolves the outbound account from cfg and the vault.
func (l *Ledger) account(cfg *model.AppConfig) (mailbox.Account, error) {
	if !cfg.Mailbox.Configured() {
		return mailbox.Account{}, fmt.Errorf("no mailbox account set: %w", ErrMailNotConfigured)
	}
	password, err := l.vault.Get(cfg.Mailbox.Account)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && password == "") {
		return mailbox.Account{}, fmt.Errorf("no password stored for %s: %w", cfg.Mailbox.Account, ErrMailNotConfigured)
	}
	if err != nil {
		return mailbox.Account{}, err
	}
	return mailbox.AccountFromConfig(cfg.Mailbox, password), nil
}
