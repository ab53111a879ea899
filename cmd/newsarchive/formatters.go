package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth truncates wide cells, measured in terminal columns.
const maxCellWidth = 60

// renderTable lays rows out in aligned columns. Widths are display widths,
// so headlines in wide scripts still line up.
func renderTable(headers []string, rows [][]string) []string {
	widths := make([]int, len(headers))
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, headers)
	for _, row := range rows {
		cut := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				cut[i] = runewidth.Truncate(row[i], maxCellWidth, "...")
			}
		}
		cells = append(cells, cut)
	}

	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(cells)+1)
	for r, row := range cells {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))

		if r == 0 {
			total := 0
			for _, w := range widths {
				total += w
			}
			lines = append(lines, strings.Repeat("-", total+2*(len(widths)-1)))
		}
	}
	return lines
}

// printTable prints rows as an aligned table.
func printTable(headers []string, rows [][]string) {
	for _, line := range renderTable(headers, rows) {
		fmt.Println(line)
	}
}

// printJSON prints v as indented JSON.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}

// checkFormat exits unless format is table or json.
func checkFormat(format string) {
	if format != "table" && format != "json" {
		fmt.Fprintf(os.Stderr, "Error: --format must be 'table' or 'json'\n")
		os.Exit(1)
	}
}
