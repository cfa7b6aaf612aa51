// Package csvio reads the delimited input files used by the bulk scripts.
//
// Input files are plain CSV with a header row. Data rows may be shorter than
// the header row; missing trailing cells are simply absent from the record
// map, matching how the upstream rosters are produced.
package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// ReadAll parses the CSV at path into raw rows, header row first.
func ReadAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows shorter than the header are accepted input
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv %s is empty", path)
	}
	return rows, nil
}

// Headers returns the trimmed header row.
func Headers(rows [][]string) []string {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// ValidateHeaders fails the run when any required column is missing.
func ValidateHeaders(headers, required []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, h := range required {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required headers: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RecordMaps converts data rows into header-keyed maps by positional
// correspondence. Cells beyond a short row are left absent.
func RecordMaps(headers []string, dataRows [][]string) []map[string]string {
	records := make([]map[string]string, 0, len(dataRows))
	for _, row := range dataRows {
		rec := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

// ParseProfileCodes splits a learner_profile_code cell into individual codes:
// all double quotes stripped, comma-separated, trimmed, empty pieces dropped.
// Order is preserved and duplicates are kept.
func ParseProfileCodes(cell string) []string {
	cell = strings.ReplaceAll(cell, `"`, "")
	var codes []string
	for _, piece := range strings.Split(cell, ",") {
		if piece = strings.TrimSpace(piece); piece != "" {
			codes = append(codes, piece)
		}
	}
	return codes
}
