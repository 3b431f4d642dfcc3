package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadCSVRecords reads a CSV document with a header row and returns one map
// per data row, keyed by the lower-cased header names. Blank lines are skipped.
func ReadCSVRecords(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %v", err)
	}
	if len(rows) == 0 {
		return []map[string]string{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, value := range row {
			if i < len(header) {
				record[header[i]] = strings.TrimSpace(value)
			}
		}
		records = append(records, record)
	}
	return records, nil
}
