package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable lays out rows under headers. Columns listed in rightAlign
// (zero-based) are right-aligned; everything else, headers included,
// stays left-aligned. Short rows are padded with empty cells.
func renderTable(headers []string, rows [][]string, rightAlign ...int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	if len(rightAlign) > 0 {
		configs := make([]table.ColumnConfig, 0, len(rightAlign))
		for _, col := range rightAlign {
			if col < 0 || col >= len(headers) {
				continue
			}
			configs = append(configs, table.ColumnConfig{
				Number:      col + 1,
				Align:       text.AlignRight,
				AlignHeader: text.AlignLeft,
			})
		}
		tw.SetColumnConfigs(configs)
	}

	return tw.Render()
}
