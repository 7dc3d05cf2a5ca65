// Package certificate holds the certificate lifecycle rules. Functions
// here are pure: they validate a transition and return the next value of
// the certificate without touching storage.
package certificate

import (
	"errors"
	"fmt"
	"time"

	"github.com/nhle/certledger/internal/model"
)

var (
	// ErrInvalidTransition is returned when the current status does not
	// permit the requested transition.
	ErrInvalidTransition = errors.New("invalid certificate transition")

	// ErrAlreadySigned is returned for any transition out of SIGNED.
	ErrAlreadySigned = fmt.Errorf("certificate already signed: %w", ErrInvalidTransition)
)

// RequestSignature moves c to SIGN_REQUESTED with a fresh code. It is
// allowed from ISSUED and from SIGN_REQUESTED, where the new code
// replaces the old one.
func RequestSignature(c model.Certificate, code string, now time.Time) (model.Certificate, error) {
	switch c.Status {
	case model.StatusIssued, model.StatusSignRequested:
	case model.StatusSigned:
		return c, fmt.Errorf("requesting signature for %s: %w", c.CertNumber, ErrAlreadySigned)
	default:
		return c, fmt.Errorf("requesting signature for %s in status %q: %w",
			c.CertNumber, c.Status, ErrInvalidTransition)
	}

	next := c
	next.Status = model.StatusSignRequested
	next.SignCode = &code
	next.SignRequestedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// ConfirmByEmail moves c from SIGN_REQUESTED to SIGNED.
func ConfirmByEmail(c model.Certificate, now time.Time) (model.Certificate, error) {
	if c.Status == model.StatusSigned {
		return c, fmt.Errorf("confirming %s: %w", c.CertNumber, ErrAlreadySigned)
	}
	if c.Status != model.StatusSignRequested {
		return c, fmt.Errorf("confirming %s in status %q: %w",
			c.CertNumber, c.Status, ErrInvalidTransition)
	}
	return signed(c, now, model.SignMethodEmail, model.SystemActor), nil
}

// OverrideSign sets SIGNED from any state before it, recording actor.
func OverrideSign(c model.Certificate, actor string, now time.Time) (model.Certificate, error) {
	if actor == "" {
		return c, fmt.Errorf("manual sign of %s: actor is required: %w", c.CertNumber, ErrInvalidTransition)
	}
	switch c.Status {
	case model.StatusIssued, model.StatusSignRequested:
	case model.StatusSigned:
		return c, fmt.Errorf("manual sign of %s: %w", c.CertNumber, ErrAlreadySigned)
	default:
		return c, fmt.Errorf("manual sign of %s in status %q: %w",
			c.CertNumber, c.Status, ErrInvalidTransition)
	}
	return signed(c, now, model.SignMethodManual, actor), nil
}

// OverridableFrom lists the states OverrideSign accepts.
func OverridableFrom() []model.CertificateStatus {
	return []model.CertificateStatus{model.StatusIssued, model.StatusSignRequested}
}

func signed(c model.Certificate, now time.Time, method model.SignMethod, by string) model.Certificate {
	next := c
	next.Status = model.StatusSigned
	next.SignedAt = &now
	next.SignedMethod = &method
	next.SignedBy = &by
	next.UpdatedAt = now
	return next
}
