package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/modoterra/hookscope/pkg/core"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// isTerminal reports whether writer is an interactive terminal. Anything
// else gets machine readable output.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var recordHeaders = []string{"#", "TIME", "EVENT", "TOOL", "SUMMARY"}

func recordRow(index int, rec core.Record) []string {
	return []string{
		itoa(index),
		rec.Timestamp(),
		rec.HookEvent(),
		rec.ToolName(),
		truncate(rec.Summary(), 60),
	}
}

func recordsTable(records []core.Record) string {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = recordRow(i, rec)
	}
	return renderTable(recordHeaders, rows, []columnAlignment{alignRight})
}

// recordLine is the one-line form used when streaming to a terminal.
func recordLine(rec core.Record) string {
	parts := []string{rec.Timestamp(), rec.HookEvent()}
	if tool := rec.ToolName(); tool != "" {
		parts = append(parts, tool)
	}
	if summary := rec.Summary(); summary != "" && summary != rec.ToolName() {
		parts = append(parts, truncate(summary, 80))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func writeJSONValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
