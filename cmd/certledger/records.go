package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/service"
	"github.com/nhle/certledger/internal/store"
)

// splitID takes a leading positional argument so it may come before the
// flags, as in "person edit P-000001 -email x@y".
func splitID(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func requireID(id string, fs *flag.FlagSet, what string) (string, error) {
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return id, nil
}

func runPerson(ctx context.Context, g globals, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: certledger person add|list|edit")
	}
	switch args[0] {
	case "add":
		return runPersonAdd(ctx, g, args[1:])
	case "list":
		return runPersonList(ctx, g, args[1:])
	case "edit":
		return runPersonEdit(ctx, g, args[1:])
	default:
		return fmt.Errorf("unknown person command: %s", args[0])
	}
}

func personFlags(fs *flag.FlagSet, in *service.PersonInput) {
	fs.StringVar(&in.GovID, "gov-id", in.GovID, "government id")
	fs.StringVar(&in.FirstName, "first", in.FirstName, "first name")
	fs.StringVar(&in.LastName, "last", in.LastName, "last name")
	fs.StringVar(&in.Email, "email", in.Email, "email address")
}

func runPersonAdd(ctx context.Context, g globals, args []string) error {
	var in service.PersonInput
	fs := flag.NewFlagSet("person add", flag.ContinueOnError)
	personFlags(fs, &in)
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.ledger.CreatePerson(ctx, in, *actor)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", p.PersonID, p.FullName())
	return nil
}

func runPersonList(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("person list", flag.ContinueOnError)
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	persons, err := e.ledger.ListPersons(ctx)
	if err != nil {
		return err
	}
	return emit(os.Stdout, *format, persons, func(tw *tabwriter.Writer) {
		row(tw, "ID", "GOV ID", "NAME", "EMAIL")
		for _, p := range persons {
			row(tw, p.PersonID, p.GovID, p.FullName(), p.Email)
		}
	})
}

func runPersonEdit(ctx context.Context, g globals, args []string) error {
	id, args := splitID(args)

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	// Flags default to nothing; only the ones given replace stored values.
	var in service.PersonInput
	fs := flag.NewFlagSet("person edit", flag.ContinueOnError)
	personFlags(fs, &in)
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if id, err = requireID(id, fs, "person id"); err != nil {
		return err
	}

	p, err := e.ledger.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	next := service.PersonInput{GovID: p.GovID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "gov-id":
			next.GovID = in.GovID
		case "first":
			next.FirstName = in.FirstName
		case "last":
			next.LastName = in.LastName
		case "email":
			next.Email = in.Email
		}
	})

	updated, err := e.ledger.UpdatePerson(ctx, id, next, *actor)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s (%s)\n", updated.PersonID, updated.FullName())
	return nil
}

func runCert(ctx context.Context, g globals, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: certledger cert issue|list|show")
	}
	switch args[0] {
	case "issue":
		return runCertIssue(ctx, g, args[1:])
	case "list":
		return runCertList(ctx, g, args[1:])
	case "show":
		return runCertShow(ctx, g, args[1:])
	default:
		return fmt.Errorf("unknown cert command: %s", args[0])
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

func runCertIssue(ctx context.Context, g globals, args []string) error {
	var in service.CertificateInput
	fs := flag.NewFlagSet("cert issue", flag.ContinueOnError)
	fs.StringVar(&in.CertType, "type", "", "certificate type")
	fs.StringVar(&in.ReceiverID, "receiver", "", "receiver person id")
	fs.StringVar(&in.GiverID, "giver", "", "giver person id")
	fs.StringVar(&in.ReceiverNameUsed, "receiver-name", "", "receiver name as printed (default: full name)")
	fs.StringVar(&in.GiverNameUsed, "giver-name", "", "giver name as printed (default: full name)")
	fs.IntVar(&in.ValidDays, "valid-days", 365, "validity in days, when -valid-until is not given")
	issued := fs.String("issued", "", "issue date YYYY-MM-DD (default: now)")
	until := fs.String("valid-until", "", "expiry date YYYY-MM-DD")
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if in.IssuedAt, err = parseDate(*issued); err != nil {
		return err
	}
	if in.ValidUntil, err = parseDate(*until); err != nil {
		return err
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.ledger.IssueCertificate(ctx, in, *actor)
	if err != nil {
		return err
	}
	fmt.Printf("issued %s (%s) to %s, valid until %s\n",
		c.CertNumber, c.CertType, c.ReceiverNameUsed, c.ValidUntil.Format(time.DateOnly))
	return nil
}

func runCertList(ctx context.Context, g globals, args []string) error {
	var lf listFlags
	fs := flag.NewFlagSet("cert list", flag.ContinueOnError)
	lf.register(fs)
	status := fs.String("status", "", "ISSUED, SIGN_REQUESTED, or SIGNED")
	query := fs.String("q", "", "search number, type, or names")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := store.CertificateFilter{Limit: lf.limit, Offset: lf.offset}
	if *status != "" {
		st := model.CertificateStatus(strings.ToUpper(*status))
		filter.Status = &st
	}
	if *query != "" {
		filter.Query = query
	}

	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	certs, err := e.ledger.ListCertificates(ctx, filter)
	if err != nil {
		return err
	}
	return emit(os.Stdout, lf.format, certs, func(tw *tabwriter.Writer) {
		row(tw, "CERT", "TYPE", "RECEIVER", "GIVER", "VALID UNTIL", "STATUS")
		for _, c := range certs {
			row(tw, c.CertNumber, c.CertType, c.ReceiverNameUsed, c.GiverNameUsed,
				c.ValidUntil.Format(time.DateOnly), c.Status)
		}
	})
}

// certDetail is the document printed by "cert show".
type certDetail struct {
	Certificate model.Certificate     `json:"certificate" yaml:"certificate"`
	Evidence    []model.EmailEvidence `json:"evidence" yaml:"evidence"`
}

func runCertShow(ctx context.Context, g globals, args []string) error {
	id, args := splitID(args)
	fs := flag.NewFlagSet("cert show", flag.ContinueOnError)
	format := formatFlag(fs)
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

	c, err := e.ledger.GetCertificate(ctx, id)
	if err != nil {
		return err
	}
	ev, err := e.ledger.ListEvidence(ctx, store.EvidenceFilter{CertNumber: &id})
	if err != nil {
		return err
	}

	// The sign code stays out of printed output.
	shown := *c
	shown.SignCode = nil

	return emit(os.Stdout, *format, certDetail{Certificate: shown, Evidence: ev}, func(tw *tabwriter.Writer) {
		row(tw, "Cert", shown.CertNumber)
		row(tw, "Type", shown.CertType)
		row(tw, "Receiver", fmt.Sprintf("%s (%s)", shown.ReceiverNameUsed, shown.ReceiverID))
		row(tw, "Giver", fmt.Sprintf("%s (%s)", shown.GiverNameUsed, shown.GiverID))
		row(tw, "Issued", shown.IssuedAt.Format(time.DateOnly))
		row(tw, "Valid until", shown.ValidUntil.Format(time.DateOnly))
		row(tw, "Status", shown.Status)
		if shown.SignRequestedAt != nil {
			row(tw, "Requested", shown.SignRequestedAt.Local().Format(time.DateTime))
		}
		if shown.SignedAt != nil && shown.SignedMethod != nil {
			row(tw, "Signed", fmt.Sprintf("%s by %s via %s",
				shown.SignedAt.Local().Format(time.DateTime), deref(shown.SignedBy), *shown.SignedMethod))
		}
		row(tw, "Evidence", len(ev))
	})
}
