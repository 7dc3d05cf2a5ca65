package ui

import (
	"github.com/charmbracelet/bubbles/table"

	"github.com/nhle/certledger/internal/theme"
)

// NewTable builds a focused table sized to width and height.
func NewTable(columns []table.Column, width, height int) table.Model {
	t := table.New(
		table.WithColumns(FitColumns(columns, width)),
		table.WithFocused(true),
		table.WithHeight(max(height-2, 1)),
	)
	t.SetStyles(theme.TableStyles())
	return t
}

// FitColumns widens the last column so the table spans width. Columns are
// returned unchanged when they already overflow.
func FitColumns(columns []table.Column, width int) []table.Column {
	out := make([]table.Column, len(columns))
	copy(out, columns)
	if len(out) == 0 {
		return out
	}

	used := 0
	for _, c := range out {
		// Each cell carries one column of padding on both sides.
		used += c.Width + 2
	}
	if extra := width - used; extra > 0 {
		out[len(out)-1].Width += extra
	}
	return out
}

// Resize applies new dimensions to a table built by NewTable.
func Resize(t *table.Model, columns []table.Column, width, height int) {
	t.SetColumns(FitColumns(columns, width))
	t.SetWidth(width)
	t.SetHeight(max(height-2, 1))
}
