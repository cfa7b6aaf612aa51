package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"
)

// encoder serializes one report to a writer. CSV quoting follows RFC 4180:
// fields containing commas or quotes are wrapped and internal quotes doubled.
type encoder func(w io.Writer, header []string, rows [][]string) error

func encoderFor(format string) (encoder, string, error) {
	switch format {
	case "csv":
		return encodeCSV, ".csv", nil
	case "csv-gz":
		return encodeCSVGzip, ".csv.gz", nil
	case "parquet":
		return encodeParquet, ".parquet", nil
	default:
		return nil, "", fmt.Errorf("unknown report format: %s", format)
	}
}

func encodeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeCSVGzip(w io.Writer, header []string, rows [][]string) error {
	gz := gzip.NewWriter(w)
	if err := encodeCSV(gz, header, rows); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// encodeParquet writes the report with a string column per header cell, for
// runs whose reports feed analytics rather than spreadsheets.
func encodeParquet(w io.Writer, header []string, rows [][]string) error {
	group := parquet.Group{}
	for _, col := range header {
		group[col] = parquet.String()
	}
	schema := parquet.NewSchema("report", group)

	pw := parquet.NewGenericWriter[map[string]any](w, schema)
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		if _, err := pw.Write([]map[string]any{rec}); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
