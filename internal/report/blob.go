package report

import (
	"context"
	"fmt"
	"net/url"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
)

// blobSink writes reports to object storage through gocloud.dev.
type blobSink struct {
	bucket  *blob.Bucket
	baseURI string
	prefix  string
	enc     encoder
	ext     string
}

func newBlobSink(bucketURL, baseURI, prefix string, enc encoder, ext string) (*blobSink, error) {
	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &blobSink{
		bucket:  bucket,
		baseURI: baseURI,
		prefix:  prefix,
		enc:     enc,
		ext:     ext,
	}, nil
}

// newS3Sink builds the gocloud URL for S3-compatible storage.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func newS3Sink(cfg config.ReportConfig, enc encoder, ext string) (*blobSink, error) {
	bucketURL := fmt.Sprintf("s3://%s", cfg.S3Bucket)

	params := url.Values{}
	if cfg.S3Region != "" {
		params.Set("region", cfg.S3Region)
	}
	if cfg.S3Endpoint != "" {
		params.Set("endpoint", cfg.S3Endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	return newBlobSink(bucketURL, "s3://"+cfg.S3Bucket, cfg.Prefix, enc, ext)
}

func (s *blobSink) Write(ctx context.Context, name string, header []string, rows [][]string) error {
	path := key(s.prefix, name, s.ext)

	w, err := s.bucket.NewWriter(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", path, err)
	}
	if err := s.enc(w, header, rows); err != nil {
		w.Close()
		return fmt.Errorf("encode report to %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", path, err)
	}
	return nil
}

func (s *blobSink) URI(name string) string {
	return fmt.Sprintf("%s/%s", s.baseURI, key(s.prefix, name, s.ext))
}

func (s *blobSink) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
