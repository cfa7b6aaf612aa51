package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// localSink writes reports to the local filesystem.
type localSink struct {
	baseDir string
	prefix  string
	enc     encoder
	ext     string
}

func newLocalSink(baseDir, prefix string, enc encoder, ext string) (*localSink, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory %s: %w", baseDir, err)
	}
	return &localSink{baseDir: baseDir, prefix: prefix, enc: enc, ext: ext}, nil
}

func (s *localSink) Write(ctx context.Context, name string, header []string, rows [][]string) error {
	path := filepath.Join(s.baseDir, key(s.prefix, name, s.ext))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := s.enc(&buf, header, rows); err != nil {
		return fmt.Errorf("encode report %s: %w", name, err)
	}

	// Write atomically using temp file + rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}

func (s *localSink) URI(name string) string {
	absPath := filepath.Join(s.baseDir, key(s.prefix, name, s.ext))
	return "file://" + absPath
}

func (s *localSink) Close() error {
	return nil
}
