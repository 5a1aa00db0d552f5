package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

func PrintTable(w io.Writer, headers []string, rows [][]string, footers []string) {
	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = utf8.RuneCountInString(header)
	}
	widen := func(cells []string) {
		for i, cell := range cells {
			if n := utf8.RuneCountInString(cell); i < len(colWidths) && n > colWidths[i] {
				colWidths[i] = n
			}
		}
	}
	for _, row := range rows {
		widen(row)
	}
	widen(footers)

	printRow := func(cells []string) {
		for i, cell := range cells {
			pad := 0
			if i < len(colWidths) {
				pad = max(colWidths[i]-utf8.RuneCountInString(cell), 0)
			}
			fmt.Fprintf(w, "%s%s\t", cell, strings.Repeat(" ", pad))
		}
		fmt.Fprintln(w)
	}

	// print header
	printRow(headers)

	// print rows
	for _, row := range rows {
		printRow(row)
	}

	// print footer, skipped when there is none
	if len(footers) > 0 {
		printRow(footers)
	}
}

// first line of s, cut to max runes
func Summary(s string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= max {
		return line
	}
	runes := []rune(line)
	return string(runes[:max-1]) + "…"
}

func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

func uniqueStrings(values ...string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
