// Package scan runs one incremental pass over the mailbox: every message
// above the watermark is fetched, normalized, and decided in UID order.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/matcher"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/normalize"
	"github.com/nhle/certledger/internal/store"
)

// Failure stages. A StageCanceled Failure unwraps to the context error.
const (
	StageConfig   = "config"
	StageConnect  = "connect"
	StageList     = "list"
	StageFetch    = "fetch"
	StagePersist  = "persist"
	StageCanceled = "canceled"
)

// ConfigStore loads and atomically saves the configuration record that
// holds the watermark.
type ConfigStore interface {
	Load() (*model.AppConfig, error)
	Save(cfg *model.AppConfig) error
}

// Result summarizes a scan. Counts are partial when Run also returns a
// Failure.
type Result struct {
	ScanID    string `json:"scan_id" yaml:"scan_id"`
	Processed int    `json:"processed" yaml:"processed"`
	Matched   int    `json:"matched" yaml:"matched"`
	Watermark uint32 `json:"watermark" yaml:"watermark"`
	// Skipped is set when no account or password is configured.
	Skipped bool `json:"skipped" yaml:"skipped"`
}

// Failure reports where a scan stopped. Decisions committed before the
// failure stay committed and the watermark covers them.
type Failure struct {
	Stage string
	UID   uint32
	Err   error
}

func (f *Failure) Error() string {
	if f.UID != 0 {
		return fmt.Sprintf("scan %s failed at uid %d: %v", f.Stage, f.UID, f.Err)
	}
	return fmt.Sprintf("scan %s failed: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options wires a Session.
type Options struct {
	Store   store.Store
	Dialer  mailbox.Dialer
	Vault   credential.Vault
	Config  ConfigStore
	Logger  *zap.Logger
	Now     func() time.Time
	NewUUID func() string
}

// Session runs scans. Callers must not run two scans at once.
type Session struct {
	store   store.Store
	dialer  mailbox.Dialer
	vault   credential.Vault
	config  ConfigStore
	logger  *zap.Logger
	now     func() time.Time
	newUUID func() string
}

// NewSession creates a Session from opts.
func NewSession(opts Options) *Session {
	s := &Session{
		store:   opts.Store,
		dialer:  opts.Dialer,
		vault:   opts.Vault,
		config:  opts.Config,
		logger:  opts.Logger,
		now:     opts.Now,
		newUUID: opts.NewUUID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newUUID == nil {
		s.newUUID = uuid.NewString
	}
	return s
}

// Run performs one scan. An unconfigured mailbox yields a skipped Result
// and no error. On transport or persistence failure the watermark is saved
// up to the last decided UID and a *Failure is returned with the partial
// Result.
func (s *Session) Run(ctx context.Context) (Result, error) {
	res := Result{ScanID: s.newUUID()}

	cfg, err := s.config.Load()
	if err != nil {
		return res, &Failure{Stage: StageConfig, Err: err}
	}
	res.Watermark = cfg.Mailbox.LastUID

	log := s.logger.With(zap.String("scan_id", res.ScanID))

	if !cfg.Mailbox.Configured() {
		log.Info("scan skipped: no mailbox account configured")
		res.Skipped = true
		return res, nil
	}

	password, err := s.vault.Get(cfg.Mailbox.Account)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && password == "") {
		log.Info("scan skipped: no mailbox password stored", zap.String("account", cfg.Mailbox.Account))
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, &Failure{Stage: StageConfig, Err: err}
	}

	acct := mailbox.AccountFromConfig(cfg.Mailbox, password)
	sess, err := s.dialer.Dial(ctx, acct)
	if err != nil {
		return res, &Failure{Stage: StageConnect, Err: err}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("closing mailbox session", zap.Error(err))
		}
	}()

	cursor := NewCursor(cfg.Mailbox.LastUID)
	listed, err := sess.ListUIDsFrom(ctx, cfg.Mailbox.Folder, cursor.Current()+1)
	if err != nil {
		return res, &Failure{Stage: StageList, Err: err}
	}
	uids := pending(listed, cursor.Current())

	log.Info("scan started",
		zap.String("folder", cfg.Mailbox.Folder),
		zap.Uint32("watermark", cursor.Current()),
		zap.Int("pending", len(uids)),
	)

	m := matcher.New(s.store, matcher.Policy{
		RequireFromMatch: cfg.Policy.RequireFromMatch,
	}, log).WithClock(s.now)

	var failure *Failure
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			failure = &Failure{Stage: StageCanceled, UID: uid, Err: err}
			break
		}

		raw, err := sess.Fetch(ctx, uid)
		if errors.Is(err, mailbox.ErrMessageGone) {
			log.Warn("message vanished before fetch", zap.Uint32("uid", uid))
			cursor.AdvanceTo(uid)
			continue
		}
		if err != nil {
			stage := StageFetch
			if ctx.Err() != nil {
				stage = StageCanceled
			}
			failure = &Failure{Stage: stage, UID: uid, Err: err}
			break
		}

		msg := normalize.Normalize(raw)
		if len(msg.Warnings) > 0 {
			log.Warn("decoding issues",
				zap.Uint32("uid", uid),
				zap.Strings("warnings", msg.Warnings),
			)
		}

		out, err := m.Process(ctx, msg, matcher.Envelope{UID: uid, ScanID: res.ScanID})
		if err != nil {
			failure = &Failure{Stage: StagePersist, UID: uid, Err: err}
			break
		}

		res.Processed++
		if out.Matched {
			res.Matched++
		}
		cursor.AdvanceTo(uid)
	}

	if cursor.Current() != cfg.Mailbox.LastUID {
		saved, err := s.saveWatermark(cursor.Current())
		if err != nil {
			if failure == nil {
				failure = &Failure{Stage: StagePersist, Err: fmt.Errorf("saving watermark: %w", err)}
			} else {
				log.Error("saving watermark after failure", zap.Error(err))
			}
		} else {
			res.Watermark = saved
		}
	}

	fields := []zap.Field{
		zap.Int("processed", res.Processed),
		zap.Int("matched", res.Matched),
		zap.Uint32("watermark", res.Watermark),
	}
	if failure != nil {
		log.Error("scan failed", append(fields,
			zap.String("stage", failure.Stage),
			zap.Uint32("uid", failure.UID),
			zap.Error(failure.Err),
		)...)
		return res, failure
	}
	log.Info("scan finished", fields...)
	return res, nil
}

// saveWatermark rereads the configuration and stores uid as its watermark,
// leaving every other setting as it is now. Settings saved while the scan
// ran are kept. The watermark never moves backwards.
func (s *Session) saveWatermark(uid uint32) (uint32, error) {
	cfg, err := s.config.Load()
	if err != nil {
		return 0, err
	}
	if cfg.Mailbox.LastUID >= uid {
		return cfg.Mailbox.LastUID, nil
	}
	cfg.Mailbox.LastUID = uid
	if err := s.config.Save(cfg); err != nil {
		return 0, err
	}
	return uid, nil
}

// pending keeps UIDs above the watermark, ascending and deduplicated.
func pending(listed []uint32, watermark uint32) []uint32 {
	uids := make([]uint32, 0, len(listed))
	for _, uid := range listed {
		if uid > watermark {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	out := uids[:0]
	for _, uid := range uids {
		if len(out) > 0 && out[len(out)-1] == uid {
			continue
		}
		out = append(out, uid)
	}
	return out
}
