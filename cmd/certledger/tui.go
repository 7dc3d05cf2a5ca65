package main

import (
	"context"
	"errors"
	"flag"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/certledger/internal/app"
	appsync "github.com/nhle/certledger/internal/sync"
)

func runTUI(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	actor := fs.String("actor", defaultActor(), "operator recorded in the audit log")
	noPoll := fs.Bool("no-poll", false, "disable the periodic background scan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g.tui = true
	e, err := openEnv(g)
	if err != nil {
		return err
	}
	defer e.Close()

	interval := time.Duration(e.cfg.Scan.PollIntervalSec) * time.Second
	scanner := appsync.New(e.ledger, interval, e.logger.Named("scanner"))
	defer scanner.Stop()

	m := app.New(app.Options{
		Service:  e.ledger,
		Scanner:  scanner,
		Actor:    *actor,
		AutoScan: !*noPoll,
		Logger:   e.logger.Named("ui"),
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
