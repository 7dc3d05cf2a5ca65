// Package service is the application facade shared by the CLI and the
// terminal UI. Every state-changing operation writes an audit entry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/scan"
	"github.com/nhle/certledger/internal/store"
)

var (
	// ErrValidation is returned when input fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrNoReceiverEmail is returned when a sign request cannot be sent
	// because the receiver has no address on file.
	ErrNoReceiverEmail = errors.New("receiver has no email on file")

	// ErrMailNotConfigured is returned when outbound mail needs an account
	// or password that has not been set.
	ErrMailNotConfigured = errors.New("mail not configured")
)

// Options wires a Ledger. Logger, Now, and NewUUID are optional.
type Options struct {
	Store   store.Store
	Config  scan.ConfigStore
	Vault   credential.Vault
	Dialer  mailbox.Dialer
	Sender  mailbox.Sender
	Logger  *zap.Logger
	Now     func() time.Time
	NewUUID func() string
}

// Ledger implements the certificate workflows.
type Ledger struct {
	store  store.Store
	config scan.ConfigStore
	vault  credential.Vault
	dialer mailbox.Dialer
	sender mailbox.Sender
	logger *zap.Logger
	now    func() time.Time
	scans  *scan.Session
}

// New creates a Ledger.
func New(opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewUUID == nil {
		opts.NewUUID = uuid.NewString
	}

	return &Ledger{
		store:  opts.Store,
		config: opts.Config,
		vault:  opts.Vault,
		dialer: opts.Dialer,
		sender: opts.Sender,
		logger: opts.Logger,
		now:    opts.Now,
		scans: scan.NewSession(scan.Options{
			Store:   opts.Store,
			Dialer:  opts.Dialer,
			Vault:   opts.Vault,
			Config:  opts.Config,
			Logger:  opts.Logger.Named("scan"),
			Now:     opts.Now,
			NewUUID: opts.NewUUID,
		}),
	}
}

// RunScan runs one mailbox scan.
func (l *Ledger) RunScan(ctx context.Context) (scan.Result, error) {
	return l.scans.Run(ctx)
}

// Settings returns the current configuration.
func (l *Ledger) Settings() (*model.AppConfig, error) {
	cfg, err := l.config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return cfg, nil
}

// auditError records a failed operation. Failures to write the row are
// logged, never returned, so the caller sees the original error.
func (l *Ledger) auditError(ctx context.Context, actor, action, entityType, entityID string, cause error) {
	err := l.store.AppendAudit(ctx, &model.AuditLogEntry{
		TS:         l.now(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Result:     model.ResultError,
		Message:    cause.Error(),
	})
	if err != nil {
		l.logger.Error("writing error audit",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return model.SystemActor
	}
	return actor
}

func toJSON(v any) (*string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding audit snapshot: %w", err)
	}
	s := string(data)
	return &s, nil
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
