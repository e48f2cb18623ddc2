package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadPractices loads the input row set from a CSV with at least
// id, name, and website columns. Extra columns are ignored; a UTF-8 BOM on
// the header is tolerated.
func ReadPractices(path string) ([]PracticeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read input header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(col)), "\ufeff")] = i
	}
	for _, required := range []string{"id", "name", "website"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("input %s is missing required column %q", path, required)
		}
	}

	var rows []PracticeRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input row: %w", err)
		}
		field := func(name string) string {
			i := idx[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, PracticeRow{
			ID:      field("id"),
			Name:    field("name"),
			Website: field("website"),
		})
	}
	return rows, nil
}
