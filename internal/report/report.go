// Package report writes the per-run status reports produced by the bulk
// scripts to local disk or object storage, as CSV, gzip CSV, or parquet.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
)

// Sink serializes a status report. A report is a header row plus string
// rows; the sink owns quoting, compression and placement.
type Sink interface {
	// Write serializes one report under the given base name.
	Write(ctx context.Context, name string, header []string, rows [][]string) error

	// URI returns the canonical URI the named report is written to.
	URI(name string) string

	// Close releases any resources.
	Close() error
}

// NewSink creates a report sink based on configuration.
func NewSink(cfg config.ReportConfig) (Sink, error) {
	enc, ext, err := encoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return newLocalSink(cfg.LocalDir, cfg.Prefix, enc, ext)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCSBucket required for gcs backend")
		}
		return newBlobSink(fmt.Sprintf("gs://%s", cfg.GCSBucket), "gs://"+cfg.GCSBucket, cfg.Prefix, enc, ext)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3Bucket required for s3 backend")
		}
		return newS3Sink(cfg, enc, ext)
	default:
		return nil, fmt.Errorf("unknown report backend: %s", cfg.Backend)
	}
}

// key joins prefix, base name and format extension.
func key(prefix, name, ext string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name + ext
}
