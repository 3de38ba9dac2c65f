package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/mapping"
)

var categoryLabels = map[mapping.Category]string{
	mapping.Persons: "Names",
	mapping.TaxIDs:  "CPFs",
	mapping.DocIDs:  "RGs",
	mapping.Dates:   "Dates",
}

// writeSummary prints per-category replacement counts.
func writeSummary(w io.Writer, s mapping.Summary) {
	counts := map[mapping.Category]int{
		mapping.Persons: s.Persons,
		mapping.TaxIDs:  s.TaxIDs,
		mapping.DocIDs:  s.DocIDs,
		mapping.Dates:   s.Dates,
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, c := range mapping.Categories {
		fmt.Fprintf(tw, "  %s\t%d\t\n", categoryLabels[c], counts[c])
	}
	_ = tw.Flush()
}

// writeMapping prints every original → replacement pair, sorted per category.
func writeMapping(w io.Writer, m *mapping.Mapping) {
	for _, c := range mapping.Categories {
		table := m.Table(c)
		if len(table) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", categoryLabels[c])
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s \u2192 %s\n", k, table[k])
		}
	}
}

// formatCounts renders a summary compactly for list output: "2/1/0/1".
func formatCounts(s mapping.Summary) string {
	return fmt.Sprintf("%d/%d/%d/%d", s.Persons, s.TaxIDs, s.DocIDs, s.Dates)
}

func writeRecords(w io.Writer, records []archive.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCUMENT\tCREATED\tNAMES/CPF/RG/DATES")
	for i := range records {
		r := &records[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Document, r.CreatedAt.Format(time.RFC3339), formatCounts(r.Summary))
	}
	_ = tw.Flush()
}
