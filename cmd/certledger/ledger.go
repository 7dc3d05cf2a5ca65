package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nhle/certledger/internal/ledger"
	"github.com/nhle/certledger/internal/store"
)

var errChainBroken = errors.New("hash chain verification failed")

func runEvidence(ctx context.Context, g globals, args []string) error {
	var lf listFlags
	fs := flag.NewFlagSet("evidence", flag.ContinueOnError)
	lf.register(fs)
	cert := fs.String("cert", "", "only evidence for this certificate")
	matched := fs.String("matched", "", "true or false to filter by verdict")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := store.EvidenceFilter{Limit: lf.limit, Offset: lf.offset}
	if *cert != "" {
		filter.CertNumber = cert
	}
	if *matched != "" {
		b, err := strconv.ParseBool(*matched)
		if err != nil {
			return fmt.Errorf("-matched must be true or false: %w", err)
		}
		filter.Matched = &b
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	ev, err := e.ledger.ListEvidence(ctx, filter)
	if err != nil {
		return err
	}
	return emit(os.Stdout, lf.format, ev, func(tw *tabwriter.Writer) {
		row(tw, "ID", "RECEIVED", "UID", "FROM", "SUBJECT", "CERT", "MATCHED", "NOTES")
		for _, x := range ev {
			row(tw, x.ID, x.ReceivedAt.Local().Format(time.DateTime), x.MailboxUID,
				x.FromEmail, x.Subject, deref(x.CertNumber), x.Matched, x.Notes)
		}
	})
}

func runAudit(ctx context.Context, g globals, args []string) error {
	var lf listFlags
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	lf.register(fs)
	entityType := fs.String("entity-type", "", "CERT, PERSON, or SETTINGS")
	entityID := fs.String("entity-id", "", "certificate number, person id, or account")
	action := fs.String("action", "", "action name, e.g. CONFIRM_SIGN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := store.AuditFilter{Limit: lf.limit, Offset: lf.offset}
	if *entityType != "" {
		filter.EntityType = entityType
	}
	if *entityID != "" {
		filter.EntityID = entityID
	}
	if *action != "" {
		filter.Action = action
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.ledger.ListAudit(ctx, filter)
	if err != nil {
		return err
	}
	return emit(os.Stdout, lf.format, entries, func(tw *tabwriter.Writer) {
		row(tw, "ID", "TIME", "ACTOR", "ACTION", "ENTITY", "RESULT", "MESSAGE")
		for _, a := range entries {
			row(tw, a.ID, a.TS.Local().Format(time.DateTime), a.Actor, a.Action,
				a.EntityType+" "+a.EntityID, a.Result, a.Message)
		}
	})
}

func runVerify(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := e.ledger.VerifyLedgers(ctx)
	if err != nil {
		return err
	}

	err = emit(os.Stdout, *format, r, func(tw *tabwriter.Writer) {
		row(tw, "LEDGER", "ENTRIES", "FAILED", "PREV LINK", "HASH", "HEAD")
		chainRow(tw, "evidence", r.Evidence)
		chainRow(tw, "audit", r.Audit)
	})
	if err != nil {
		return err
	}
	if !r.OK() {
		return errChainBroken
	}
	return nil
}

func chainRow(tw *tabwriter.Writer, name string, r ledger.Result) {
	head := r.LastChainHash
	if len(head) > 16 {
		head = head[:16]
	}
	row(tw, name, r.Total, r.Failed, r.PrevHashFailed, r.ChainHashFailed, head)
	for _, f := range r.Failures {
		row(tw, "", "", fmt.Sprintf("row %d: %s", f.RowID, f.Message))
	}
}

func runReport(ctx context.Context, g globals, args []string) error {
	id, args := splitID(args)
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dir := fs.String("dir", "", "output directory (default: report.dir from settings)")
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

	res, err := e.ledger.ExportEvidenceReport(ctx, id, *dir, *actor)
	if err != nil {
		return err
	}
	fmt.Printf("report=%s\nsha256=%s\nbytes=%d\n", res.Path, res.SHA256, res.Bytes)
	return nil
}
