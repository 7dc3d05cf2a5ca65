// Command certledger issues certificates, mails sign requests, and
// confirms signatures from the replies found in a mailbox.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/logging"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/service"
	"github.com/nhle/certledger/internal/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// globals are the flags accepted before the subcommand.
type globals struct {
	configPath string
	verbose    bool
	// tui keeps logs off the terminal the UI draws on.
	tui bool
}

// run parses the global flags and routes to a subcommand.
func run(ctx context.Context, args []string) error {
	var g globals
	fs := flag.NewFlagSet("certledger", flag.ContinueOnError)
	fs.StringVar(&g.configPath, "config", model.DefaultConfigPath(), "configuration file")
	fs.BoolVar(&g.verbose, "v", false, "log at debug level to stderr")
	fs.Usage = printUsage
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()

	cmd := "tui"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "tui":
		return runTUI(ctx, g, args)
	case "scan":
		return runScan(ctx, g, args)
	case "replay-mbox":
		return runReplayMbox(ctx, g, args)
	case "person":
		return runPerson(ctx, g, args)
	case "cert":
		return runCert(ctx, g, args)
	case "request":
		return runRequest(ctx, g, args)
	case "sign":
		return runSign(ctx, g, args)
	case "evidence":
		return runEvidence(ctx, g, args)
	case "audit":
		return runAudit(ctx, g, args)
	case "verify":
		return runVerify(ctx, g, args)
	case "report":
		return runReport(ctx, g, args)
	case "settings":
		return runSettings(ctx, g, args)
	case "set-password":
		return runSetPassword(ctx, g, args)
	case "check-mail":
		return runCheckMail(ctx, g, args)
	case "version":
		fmt.Println(version)
		return nil
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: certledger [-config FILE] [-v] <command> [flags]

commands:
  tui                          interactive terminal UI (default)
  scan                         scan the mailbox once for signature replies
  replay-mbox FILE             run a scan over an mbox export without touching the watermark
  person add|list|edit         manage persons
  cert issue|list|show         manage certificates
  request CERT                 email a sign request to the receiver
  sign CERT -actor NAME        mark a certificate signed without email
  evidence                     list the evidence ledger
  audit                        list the audit ledger
  verify                       re-verify both hash chains
  report CERT                  export the evidence PDF of a certificate
  settings                     show or change settings
  set-password                 store the mailbox password in the keyring
  check-mail                   log in to the mailbox and count unscanned messages
`)
}

// env holds the wiring shared by every command.
type env struct {
	cfgStore model.FileConfigStore
	cfg      *model.AppConfig
	store    *store.SQLiteStore
	ledger   *service.Ledger
	logger   *zap.Logger
}

func (e *env) Close() {
	_ = e.logger.Sync()
	_ = e.store.Close()
}

// openEnv loads the configuration, opens the database, and builds the
// ledger wired to the real keyring and mail servers.
func openEnv(g globals) (*env, error) {
	cfgStore := model.FileConfigStore{Path: g.configPath}
	cfg, err := cfgStore.Load()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	switch {
	case g.tui && (logCfg.Output == "" || logCfg.Output == "stderr" || logCfg.Output == "stdout"):
		logCfg.Output = filepath.Join(model.DefaultConfigDir(), "certledger.log")
	case g.verbose:
		logCfg.Level = "debug"
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	vault := &credential.Keyring{Dir: filepath.Join(filepath.Dir(g.configPath), "credentials")}
	ledger := service.New(service.Options{
		Store:  s,
		Config: cfgStore,
		Vault:  vault,
		Dialer: mailbox.IMAPDialer{},
		Sender: mailbox.SMTPSender{},
		Logger: logger,
	})

	logger.Debug("environment ready",
		zap.String("config", g.configPath),
		zap.String("db", cfg.Database.Path),
	)
	return &env{cfgStore: cfgStore, cfg: cfg, store: s, ledger: ledger, logger: logger}, nil
}

// defaultActor names the operator for the audit trail.
func defaultActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return model.SystemActor
}
