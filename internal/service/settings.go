package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/model"
)

// UpdateSettings saves next as the configuration. The scan watermark is
// owned by the scanner and is carried over from the stored record.
func (l *Ledger) UpdateSettings(ctx context.Context, next *model.AppConfig, actor string) error {
	actor = actorOrSystem(actor)
	if err := validateSettings(next); err != nil {
		return err
	}

	prev, err := l.config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	cfg := next.Clone()
	cfg.Mailbox.Account = strings.ToLower(strings.TrimSpace(cfg.Mailbox.Account))
	cfg.Mailbox.LastUID = prev.Mailbox.LastUID

	before, err := toJSON(prev)
	if err != nil {
		return err
	}
	after, err := toJSON(cfg)
	if err != nil {
		return err
	}

	if err := l.config.Save(cfg); err != nil {
		err = fmt.Errorf("saving settings: %w", err)
		l.auditError(ctx, actor, model.ActionUpdateSettings, model.EntitySettings, "config", err)
		return err
	}

	err = l.store.AppendAudit(ctx, &model.AuditLogEntry{
		TS:         l.now(),
		Actor:      actor,
		Action:     model.ActionUpdateSettings,
		EntityType: model.EntitySettings,
		EntityID:   "config",
		BeforeJSON: before,
		AfterJSON:  after,
		Result:     model.ResultOK,
		Message:    "settings updated",
	})
	if err != nil {
		return fmt.Errorf("auditing settings update: %w", err)
	}
	l.logger.Info("settings updated", zap.String("actor", actor))
	return nil
}

// SetMailboxPassword stores the password for the configured account. The
// secret is never logged or written to the audit trail.
func (l *Ledger) SetMailboxPassword(ctx context.Context, password, actor string) error {
	actor = actorOrSystem(actor)
	if password == "" {
		return validationf("password is required")
	}

	cfg, err := l.config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if !cfg.Mailbox.Configured() {
		return fmt.Errorf("storing mailbox password: %w", ErrMailNotConfigured)
	}
	account := cfg.Mailbox.Account

	if err := l.vault.Set(account, password); err != nil {
		err = fmt.Errorf("storing mailbox password for %s: %w", account, err)
		l.auditError(ctx, actor, model.ActionSetEmailPassword, model.EntitySettings, account, err)
		return err
	}

	err = l.store.AppendAudit(ctx, &model.AuditLogEntry{
		TS:         l.now(),
		Actor:      actor,
		Action:     model.ActionSetEmailPassword,
		EntityType: model.EntitySettings,
		EntityID:   account,
		Result:     model.ResultOK,
		Message:    "stored mailbox password in keyring",
	})
	if err != nil {
		return fmt.Errorf("auditing password change: %w", err)
	}
	l.logger.Info("mailbox password stored", zap.String("account", account))
	return nil
}

// TestConnection logs in to the configured mailbox and counts the
// messages in the scan folder. Nothing is fetched or recorded.
func (l *Ledger) TestConnection(ctx context.Context) (ConnectionReport, error) {
	cfg, err := l.config.Load()
	if err != nil {
		return ConnectionReport{}, fmt.Errorf("loading settings: %w", err)
	}
	acct, err := l.account(cfg)
	if err != nil {
		return ConnectionReport{}, err
	}

	sess, err := l.dialer.Dial(ctx, acct)
	if err != nil {
		return ConnectionReport{}, err
	}
	defer sess.Close()

	uids, err := sess.ListUIDsFrom(ctx, cfg.Mailbox.Folder, 1)
	if err != nil {
		return ConnectionReport{}, fmt.Errorf("listing %s: %w", cfg.Mailbox.Folder, err)
	}

	report := ConnectionReport{
		Account:  acct.Username,
		Folder:   cfg.Mailbox.Folder,
		Messages: len(uids),
	}
	for _, uid := range uids {
		if uid > cfg.Mailbox.LastUID {
			report.Unscanned++
		}
	}
	l.logger.Debug("connection test passed",
		zap.String("account", report.Account),
		zap.Int("messages", report.Messages),
	)
	return report, nil
}

// ConnectionReport describes a successful mailbox login.
type ConnectionReport struct {
	Account   string `json:"account" yaml:"account"`
	Folder    string `json:"folder" yaml:"folder"`
	Messages  int    `json:"messages" yaml:"messages"`
	Unscanned int    `json:"unscanned" yaml:"unscanned"`
}

func validateSettings(cfg *model.AppConfig) error {
	if cfg == nil {
		return validationf("settings are required")
	}
	mb := cfg.Mailbox
	if mb.Account != "" && !strings.Contains(mb.Account, "@") {
		return validationf("mailbox account %q is not an email address", mb.Account)
	}
	if mb.Configured() {
		switch {
		case strings.TrimSpace(mb.IMAPHost) == "":
			return validationf("imap host is required")
		case strings.TrimSpace(mb.SMTPHost) == "":
			return validationf("smtp host is required")
		case strings.TrimSpace(mb.Folder) == "":
			return validationf("folder is required")
		}
	}
	if mb.IMAPPort <= 0 || mb.IMAPPort > 65535 {
		return validationf("imap port %d is out of range", mb.IMAPPort)
	}
	if mb.SMTPPort <= 0 || mb.SMTPPort > 65535 {
		return validationf("smtp port %d is out of range", mb.SMTPPort)
	}
	if cfg.Scan.PollIntervalSec <= 0 {
		return validationf("poll interval must be positive")
	}
	return nil
}
