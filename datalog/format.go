package datalog

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// TableFormatter renders relation contents as markdown tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// FormatEdges formats a relation's edges as a markdown table.
func (tf *TableFormatter) FormatEdges(name string, edges []Edge) string {
	if len(edges) == 0 {
		return fmt.Sprintf("_%s is empty_", name)
	}

	rows := make([][]string, len(edges))
	for i, e := range edges {
		rows[i] = []string{fmt.Sprintf("%d", e.Src), fmt.Sprintf("%d", e.Dst)}
	}
	return tf.formatTable([]string{name + ".src", name + ".dst"}, rows)
}

// FormatDegrees formats per-node edge counts as a markdown table. The
// count column is named .out for forward degrees and .in for reverse.
func (tf *TableFormatter) FormatDegrees(name string, dir Direction, degrees []Degree) string {
	if len(degrees) == 0 {
		return fmt.Sprintf("_%s has no %s degrees_", name, dir)
	}

	col := name + ".out"
	if dir == Reverse {
		col = name + ".in"
	}
	rows := make([][]string, len(degrees))
	for i, d := range degrees {
		rows[i] = []string{fmt.Sprintf("%d", d.Node), fmt.Sprintf("%d", d.Count)}
	}
	return tf.formatTable([]string{"node", col}, rows)
}

// formatTable renders headers and rows as a markdown table with a row
// count suffix.
func (tf *TableFormatter) formatTable(headers []string, rows [][]string) string {
	tableString := &strings.Builder{}

	// AlignNone keeps the separator row free of alignment colons.
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return tableString.String()
}
