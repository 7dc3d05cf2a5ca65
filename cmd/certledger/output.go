package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// outputFormat selects how list commands print.
type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(s string) error {
	switch v := outputFormat(strings.ToLower(s)); v {
	case formatTable, formatJSON, formatYAML:
		*f = v
		return nil
	}
	return fmt.Errorf("format must be table, json, or yaml, got %q", s)
}

// listFlags are shared by commands that page through a ledger.
type listFlags struct {
	limit  int
	offset int
	format outputFormat
}

func (l *listFlags) register(fs *flag.FlagSet) {
	l.format = formatTable
	fs.IntVar(&l.limit, "limit", 50, "maximum rows")
	fs.IntVar(&l.offset, "offset", 0, "rows to skip")
	fs.Var(&l.format, "format", "output format: table, json, or yaml")
}

func formatFlag(fs *flag.FlagSet) *outputFormat {
	f := formatTable
	fs.Var(&f, "format", "output format: table, json, or yaml")
	return &f
}

// emit writes v as JSON or YAML, or calls table for the table format.
func emit(w io.Writer, f outputFormat, v any, table func(tw *tabwriter.Writer)) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func row(tw *tabwriter.Writer, cols ...any) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
