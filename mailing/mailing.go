// Package mailing turns CSV address lists into per-page overlay
// instructions for recto/verso mailings. Address blocks land on the
// verso pages at the positions the printing template expects.
package mailing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Options controls CSV ingestion.
type Options struct {
	// HeaderLines is the number of leading rows to skip.
	HeaderLines int
	// SortByZip orders the addresses by their last field.
	SortByZip bool
}

// ReadAddressFile reads a CSV address list from disk.
func ReadAddressFile(path string, opts Options) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	addresses, err := ReadAddresses(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return addresses, nil
}

// ReadAddresses parses rows of the form
// Name,Street,City,State,ZIP into formatted address blocks. Rows with
// fewer than five fields are treated as a name containing a line break
// and merged into the following row. The last three fields collapse
// into a single city line.
func ReadAddresses(r io.Reader, opts Options) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for line := 0; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line < opts.HeaderLines {
			continue
		}
		for i, field := range row {
			// Spreadsheet exports wrap fields in quotes and prefix
			// them with = to force text cells.
			row[i] = strings.ReplaceAll(strings.ReplaceAll(field, `"`, ""), "=", "")
		}
		rows = append(rows, row)
	}

	rows = mergeShortRows(rows)
	if opts.SortByZip {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i][len(rows[i])-1] < rows[j][len(rows[j])-1]
		})
	}

	addresses := make([]string, 0, len(rows))
	for _, row := range rows {
		addresses = append(addresses, formatBlock(row))
	}
	return addresses, nil
}

// mergeShortRows repairs records whose name field contained a newline,
// which the export splits across two CSV rows.
func mergeShortRows(rows [][]string) [][]string {
	var out [][]string
	for i := 0; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 5 && i+1 < len(rows) {
			rows[i+1] = append([]string{strings.Join(row, "\n") + "\n"}, rows[i+1]...)
			continue
		}
		out = append(out, row)
	}
	return out
}

// formatBlock renders one address: every field on its own line except
// the last three, which join into the city line.
func formatBlock(row []string) string {
	if len(row) < 4 {
		return strings.Join(row, "\n")
	}
	city := strings.Join(row[len(row)-3:], " ")
	lines := append(append([]string{}, row[:len(row)-3]...), city)
	return strings.Join(lines, "\n")
}
