package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	obstable "github.com/roach88/lstar/internal/table"
)

// TableView is the observation table as rendered by learn --show-table.
type TableView struct {
	Suffixes []string  `json:"suffixes"`
	Rows     []RowView `json:"rows"`
}

// RowView is one row of a TableView.
type RowView struct {
	Prefix      string   `json:"prefix"`
	ShortPrefix bool     `json:"short_prefix"`
	Cells       []string `json:"cells"`
}

// newTableView lists the short prefixes first, then the candidates, each in
// insertion order.
func newTableView(t *obstable.Table[string, string]) TableView {
	view := TableView{}
	for _, s := range t.Suffixes() {
		view.Suffixes = append(view.Suffixes, s.String())
	}
	add := func(r *obstable.Row[string]) {
		view.Rows = append(view.Rows, RowView{
			Prefix:      r.Label().String(),
			ShortPrefix: r.IsShortPrefix(),
			Cells:       t.Contents(r),
		})
	}
	for _, r := range t.ShortPrefixRows() {
		add(r)
	}
	for _, r := range t.CandidateRows() {
		add(r)
	}
	return view
}

// writeTable renders view. Short prefixes are marked with "S" in the first
// column.
func writeTable(w io.Writer, view TableView) error {
	rows := make([][]string, len(view.Rows))
	for i, r := range view.Rows {
		mark := ""
		if r.ShortPrefix {
			mark = "S"
		}
		rows[i] = append([]string{mark, r.Prefix}, r.Cells...)
	}
	return writeGrid(w, append([]string{"", "prefix"}, view.Suffixes...), rows)
}

// writeGrid renders rows under headers with a rounded border. Styles come
// from a renderer bound to w, so plain writers get no escape codes.
func writeGrid(w io.Writer, headers []string, rows [][]string) error {
	re := lipgloss.NewRenderer(w)
	header := re.NewStyle().Bold(true).Padding(0, 1)
	cell := re.NewStyle().Padding(0, 1)

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(re.NewStyle().Faint(true)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
