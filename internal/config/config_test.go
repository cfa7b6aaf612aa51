package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Enroll.BatchSize != 5 {
		t.Errorf("Enroll.BatchSize = %d, want 5", cfg.Enroll.BatchSize)
	}
	if cfg.Enroll.CourseConcurrency != 1 {
		t.Errorf("Enroll.CourseConcurrency = %d, want 1", cfg.Enroll.CourseConcurrency)
	}
	if cfg.Enroll.UserWaitInterval != 0 {
		t.Errorf("Enroll.UserWaitInterval = %v, want 0", cfg.Enroll.UserWaitInterval)
	}
	if cfg.Auth.GrantType != "password" {
		t.Errorf("Auth.GrantType = %q, want %q", cfg.Auth.GrantType, "password")
	}
	if cfg.Report.Backend != "local" || cfg.Report.Format != "csv" {
		t.Errorf("Report = %+v, want local/csv defaults", cfg.Report)
	}
	if cfg.Quiz.WaitInterval != 5*time.Second {
		t.Errorf("Quiz.WaitInterval = %v, want 5s", cfg.Quiz.WaitInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENROLLMENT_BATCH_SIZE", "10")
	t.Setenv("COURSE_BATCH_SIZE", "3")
	t.Setenv("ENROLL_USER_WAIT_INTERVAL", "250")
	t.Setenv("CHANNEL_ID", "testchannel")
	t.Setenv("ALLOWED_LANGUAGES", "English, Arabic")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Enroll.BatchSize != 10 {
		t.Errorf("Enroll.BatchSize = %d, want 10", cfg.Enroll.BatchSize)
	}
	if cfg.Enroll.CourseConcurrency != 3 {
		t.Errorf("Enroll.CourseConcurrency = %d, want 3", cfg.Enroll.CourseConcurrency)
	}
	if cfg.Enroll.UserWaitInterval != 250*time.Millisecond {
		t.Errorf("Enroll.UserWaitInterval = %v, want 250ms", cfg.Enroll.UserWaitInterval)
	}
	if cfg.API.ChannelID != "testchannel" {
		t.Errorf("API.ChannelID = %q, want %q", cfg.API.ChannelID, "testchannel")
	}
	if len(cfg.Quiz.AllowedLanguages) != 2 || cfg.Quiz.AllowedLanguages[1] != "Arabic" {
		t.Errorf("Quiz.AllowedLanguages = %v, want [English Arabic]", cfg.Quiz.AllowedLanguages)
	}
}

func TestLoad_YAMLFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
enroll:
  batch_size: 7
  input_path: /srv/roster.csv
report:
  backend: local
  local_dir: /srv/reports
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENROLLMENT_BATCH_SIZE", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// env wins over file
	if cfg.Enroll.BatchSize != 9 {
		t.Errorf("Enroll.BatchSize = %d, want env override 9", cfg.Enroll.BatchSize)
	}
	// file wins over default
	if cfg.Enroll.InputPath != "/srv/roster.csv" {
		t.Errorf("Enroll.InputPath = %q, want file value", cfg.Enroll.InputPath)
	}
	if cfg.Report.LocalDir != "/srv/reports" {
		t.Errorf("Report.LocalDir = %q, want file value", cfg.Report.LocalDir)
	}
}

func TestValidate_RejectsBadBatchSizes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Enroll.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.Enroll.BatchSize = -1 }},
		{"zero course concurrency", func(c *Config) { c.Enroll.CourseConcurrency = 0 }},
		{"unknown backend", func(c *Config) { c.Report.Backend = "ftp" }},
		{"unknown format", func(c *Config) { c.Report.Format = "xlsx" }},
		{"gcs without bucket", func(c *Config) { c.Report.Backend = "gcs" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
