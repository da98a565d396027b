// Package report prints the console summary of a run.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"earth911/internal/facility"
)

const (
	nameColumnWidth      = 40
	addressColumnWidth   = 45
	materialsColumnWidth = 50
)

// Summary is what the table shows.
type Summary struct {
	Requested int
	Records   []facility.Record
	// Source names where the records came from, e.g. "browser" or "cache".
	Source string
}

// Write renders the summary to w.
func Write(w io.Writer, s Summary) error {
	if len(s.Records) == 0 {
		_, err := fmt.Fprintf(w, "No facilities scraped (0 of %d requested).\n", s.Requested)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = true
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: nameColumnWidth},
		{Number: 4, WidthMax: addressColumnWidth},
		{Number: 5, WidthMax: materialsColumnWidth},
	})
	t.SetTitle("Recycling facilities")
	t.AppendHeader(table.Row{"#", "Business Name", "Last Updated", "Address", "Materials"})
	for i, r := range s.Records {
		t.AppendRow(table.Row{i + 1, r.Name, r.LastUpdated, r.StreetAddress, r.MaterialsAccepted})
	}
	footer := fmt.Sprintf("obtained %d of %d requested", len(s.Records), s.Requested)
	if s.Source != "" {
		footer += " (" + s.Source + ")"
	}
	t.AppendFooter(table.Row{"", footer})
	t.Render()
	return nil
}
