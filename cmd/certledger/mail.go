package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/huh"

	"github.com/nhle/certledger/internal/credential"
	"github.com/nhle/certledger/internal/mailbox"
	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/scan"
	"github.com/nhle/certledger/internal/service"
)

func runRequest(ctx context.Context, g globals, args []string) error {
	id, args := splitID(args)
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireID(id, fs, "certificate number")
	if err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.ledger.RequestSignature(ctx, id, *actor); err != nil {
		return err
	}
	fmt.Printf("sign request for %s sent\n", id)
	return nil
}

func runSign(ctx context.Context, g globals, args []string) error {
	id, args := splitID(args)
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	actor := fs.String("actor", "", "person signing off the certificate (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireID(id, fs, "certificate number")
	if err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.ledger.ManualOverrideSign(ctx, id, *actor); err != nil {
		return err
	}
	fmt.Printf("%s marked SIGNED by %s\n", id, strings.TrimSpace(*actor))
	return nil
}

func runScan(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.ledger.RunScan(ctx)
	if perr := printScan(*format, res); perr != nil {
		return perr
	}
	return err
}

func runCheckMail(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("check-mail", flag.ContinueOnError)
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.ledger.TestConnection(ctx)
	if err != nil {
		return err
	}
	return emit(os.Stdout, *format, report, func(tw *tabwriter.Writer) {
		row(tw, "account", report.Account)
		row(tw, "folder", report.Folder)
		row(tw, "messages", report.Messages)
		row(tw, "unscanned", report.Unscanned)
	})
}

func runReplayMbox(ctx context.Context, g globals, args []string) error {
	path, args := splitID(args)
	fs := flag.NewFlagSet("replay-mbox", flag.ContinueOnError)
	fromUID := fs.Uint("from", 1, "first message index to replay (1-based)")
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := requireID(path, fs, "mbox file")
	if err != nil {
		return err
	}
	if *fromUID == 0 {
		*fromUID = 1
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	// The replay keeps its own watermark so the IMAP one is untouched.
	cfg := e.cfg.Clone()
	cfg.Mailbox.LastUID = uint32(*fromUID - 1)
	if !cfg.Mailbox.Configured() {
		cfg.Mailbox.Account = "replay@localhost"
	}
	replay := service.New(service.Options{
		Store:  e.store,
		Config: model.NewMemoryConfigStore(cfg),
		Vault:  credential.NewStatic(map[string]string{cfg.Mailbox.Account: "replay"}),
		Dialer: mailbox.MboxDialer{Path: path},
		Logger: e.logger.Named("replay"),
	})

	res, err := replay.RunScan(ctx)
	if perr := printScan(*format, res); perr != nil {
		return perr
	}
	return err
}

func printScan(f outputFormat, res scan.Result) error {
	return emit(os.Stdout, f, res, func(tw *tabwriter.Writer) {
		if res.Skipped {
			row(tw, "skipped", "email is not configured (set an account and run set-password)")
			return
		}
		row(tw, "scan_id", res.ScanID)
		row(tw, "processed", res.Processed)
		row(tw, "matched", res.Matched)
		row(tw, "watermark", res.Watermark)
	})
}

func runSettings(ctx context.Context, g globals, args []string) error {
	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	next := e.cfg.Clone()
	mb := &next.Mailbox
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.StringVar(&mb.Account, "account", mb.Account, "mailbox account and From address")
	fs.StringVar(&mb.IMAPHost, "imap-host", mb.IMAPHost, "IMAP host")
	fs.IntVar(&mb.IMAPPort, "imap-port", mb.IMAPPort, "IMAP port")
	fs.BoolVar(&mb.IMAPTLS, "imap-tls", mb.IMAPTLS, "implicit TLS for IMAP (STARTTLS otherwise)")
	fs.StringVar(&mb.Folder, "folder", mb.Folder, "mailbox folder to scan")
	fs.StringVar(&mb.SMTPHost, "smtp-host", mb.SMTPHost, "SMTP host")
	fs.IntVar(&mb.SMTPPort, "smtp-port", mb.SMTPPort, "SMTP port")
	fs.BoolVar(&mb.SMTPTLS, "smtp-tls", mb.SMTPTLS, "implicit TLS for SMTP (STARTTLS otherwise)")
	fs.BoolVar(&next.Policy.RequireFromMatch, "require-from-match", next.Policy.RequireFromMatch,
		"only accept replies from the receiver's or giver's address")
	fs.IntVar(&next.Scan.PollIntervalSec, "poll-interval", next.Scan.PollIntervalSec, "TUI scan interval in seconds")
	fs.StringVar(&next.Report.Dir, "report-dir", next.Report.Dir, "evidence report directory")
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	format := outputFormat(formatYAML)
	fs.Var(&format, "format", "output format when showing: table, json, or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	changed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "actor" && f.Name != "format" {
			changed = true
		}
	})

	if changed {
		if err := e.ledger.UpdateSettings(ctx, next, *actor); err != nil {
			return err
		}
		fmt.Println("settings saved to", g.configPath)
		return nil
	}

	return emit(os.Stdout, format, e.cfg, func(tw *tabwriter.Writer) {
		row(tw, "account", e.cfg.Mailbox.Account)
		row(tw, "imap", fmt.Sprintf("%s:%d tls=%t", e.cfg.Mailbox.IMAPHost, e.cfg.Mailbox.IMAPPort, e.cfg.Mailbox.IMAPTLS))
		row(tw, "folder", e.cfg.Mailbox.Folder)
		row(tw, "smtp", fmt.Sprintf("%s:%d tls=%t", e.cfg.Mailbox.SMTPHost, e.cfg.Mailbox.SMTPPort, e.cfg.Mailbox.SMTPTLS))
		row(tw, "last_uid", e.cfg.Mailbox.LastUID)
		row(tw, "require_from_match", e.cfg.Policy.RequireFromMatch)
		row(tw, "poll_interval_sec", e.cfg.Scan.PollIntervalSec)
		row(tw, "report_dir", e.cfg.Report.Dir)
		row(tw, "database", e.cfg.Database.Path)
	})
}

func runSetPassword(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	fromStdin := fs.Bool("password-stdin", false, "read the password from the first line of stdin")
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.cfg.Mailbox.Configured() {
		return fmt.Errorf("set an account first: certledger settings -account you@example.com: %w",
			service.ErrMailNotConfigured)
	}

	var password string
	if *fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else {
		err := huh.NewInput().
			Title("Password for " + e.cfg.Mailbox.Account).
			Description("Use an app password when the provider requires one.").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	if err := e.ledger.SetMailboxPassword(ctx, password, *actor); err != nil {
		return err
	}
	fmt.Println("password stored in the system keyring")
	return nil
}
