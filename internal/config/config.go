// Package config loads toolkit configuration from an optional YAML file,
// a .env file, and environment variables. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Enroll  EnrollConfig  `yaml:"enroll"`
	Quiz    QuizConfig    `yaml:"quiz"`
	Report  ReportConfig  `yaml:"report"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig targets one LMS instance.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthKey   string `yaml:"auth_key"`
	ChannelID string `yaml:"channel_id"`
}

// AuthConfig holds the credentials for the token-refresh flow.
type AuthConfig struct {
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	GrantType        string `yaml:"grant_type"`
	CreatorUsername  string `yaml:"creator_username"`
	CreatorPassword  string `yaml:"creator_password"`
	ReviewerUsername string `yaml:"reviewer_username"`
	ReviewerPassword string `yaml:"reviewer_password"`
}

// EnrollConfig controls the bulk enrollment run.
type EnrollConfig struct {
	InputPath string `yaml:"input_path"`
	// BatchSize is how many CSV rows are processed concurrently per outer batch.
	BatchSize int `yaml:"batch_size"`
	// CourseConcurrency caps simultaneous enrollment submissions per profile.
	CourseConcurrency int `yaml:"course_concurrency"`
	// UserWaitInterval throttles between per-user pipelines.
	UserWaitInterval time.Duration `yaml:"user_wait_interval"`
}

// QuizConfig controls the quiz creation/update workflows.
type QuizConfig struct {
	CSVPath          string        `yaml:"csv_path"`
	WaitInterval     time.Duration `yaml:"wait_interval"`
	AllowedLanguages []string      `yaml:"allowed_languages"`
}

// ReportConfig selects where and how status reports are written.
type ReportConfig struct {
	Backend string `yaml:"backend"` // "local" | "gcs" | "s3"
	Format  string `yaml:"format"`  // "csv" | "csv-gz" | "parquet"

	LocalDir string `yaml:"local_dir"`

	GCSBucket string `yaml:"gcs_bucket"`

	S3Bucket   string `yaml:"s3_bucket"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`

	Prefix string `yaml:"prefix"`
}

// AuditConfig controls the tamper-evident run audit trail. Events are
// always backed up to Dir; Endpoint additionally POSTs them to a collector.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Dir      string `yaml:"dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then .env, then process environment.
func Load() (Config, error) {
	// .env is optional; ignore a missing file but not a broken one.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "https://dev-fmps.sunbirded.org",
			ChannelID: "01429195271738982411",
		},
		Auth: AuthConfig{
			GrantType: "password",
		},
		Enroll: EnrollConfig{
			InputPath:         "data/user-learner.csv",
			BatchSize:         5,
			CourseConcurrency: 1,
			UserWaitInterval:  0,
		},
		Quiz: QuizConfig{
			CSVPath:          "data/quiz-update.csv",
			WaitInterval:     5 * time.Second,
			AllowedLanguages: []string{"English", "French", "Arabic"},
		},
		Report: ReportConfig{
			Backend:  "local",
			Format:   "csv",
			LocalDir: "./reports",
		},
		Audit: AuditConfig{
			Enabled: false,
			Dir:     "./audit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.API.BaseURL, "BASE_URL")
	setString(&cfg.API.AuthKey, "AUTH_KEY")
	setString(&cfg.API.ChannelID, "CHANNEL_ID")

	setString(&cfg.Auth.ClientID, "CLIENT_ID")
	setString(&cfg.Auth.ClientSecret, "CLIENT_SECRET")
	setString(&cfg.Auth.GrantType, "GRANT_TYPE")
	setString(&cfg.Auth.CreatorUsername, "CREATOR_USERNAME")
	setString(&cfg.Auth.CreatorPassword, "CREATOR_PASSWORD")
	setString(&cfg.Auth.ReviewerUsername, "REVIEWER_USERNAME")
	setString(&cfg.Auth.ReviewerPassword, "REVIEWER_PASSWORD")

	setString(&cfg.Enroll.InputPath, "INPUT_PATH")
	setInt(&cfg.Enroll.BatchSize, "ENROLLMENT_BATCH_SIZE")
	setInt(&cfg.Enroll.CourseConcurrency, "COURSE_BATCH_SIZE")
	setMillis(&cfg.Enroll.UserWaitInterval, "ENROLL_USER_WAIT_INTERVAL")

	setString(&cfg.Quiz.CSVPath, "QUIZ_CSV_PATH")
	setMillis(&cfg.Quiz.WaitInterval, "WAIT_INTERVAL")
	if v := os.Getenv("ALLOWED_LANGUAGES"); v != "" {
		parts := strings.Split(v, ",")
		langs := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				langs = append(langs, p)
			}
		}
		cfg.Quiz.AllowedLanguages = langs
	}

	setString(&cfg.Report.Backend, "REPORT_BACKEND")
	setString(&cfg.Report.Format, "REPORT_FORMAT")
	setString(&cfg.Report.LocalDir, "REPORT_LOCAL_DIR")
	setString(&cfg.Report.GCSBucket, "REPORT_GCS_BUCKET")
	setString(&cfg.Report.S3Bucket, "REPORT_S3_BUCKET")
	setString(&cfg.Report.S3Endpoint, "REPORT_S3_ENDPOINT")
	setString(&cfg.Report.S3Region, "REPORT_S3_REGION")
	setString(&cfg.Report.Prefix, "REPORT_PREFIX")

	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		cfg.Audit.Enabled = v == "true"
	}
	setString(&cfg.Audit.Endpoint, "AUDIT_ENDPOINT")
	setString(&cfg.Audit.Dir, "AUDIT_DIR")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	setString(&cfg.Metrics.Address, "METRICS_ADDR")
}

// Validate rejects configurations that would make a run loop forever or
// silently no-op.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api base URL is required")
	}
	if c.Enroll.BatchSize <= 0 {
		return fmt.Errorf("config: enrollment batch size must be positive, got %d", c.Enroll.BatchSize)
	}
	if c.Enroll.CourseConcurrency <= 0 {
		return fmt.Errorf("config: course concurrency must be positive, got %d", c.Enroll.CourseConcurrency)
	}
	if c.Enroll.UserWaitInterval < 0 {
		return fmt.Errorf("config: user wait interval must not be negative")
	}
	switch c.Report.Backend {
	case "local":
		if c.Report.LocalDir == "" {
			return fmt.Errorf("config: report local_dir is required for local backend")
		}
	case "gcs":
		if c.Report.GCSBucket == "" {
			return fmt.Errorf("config: report gcs_bucket is required for gcs backend")
		}
	case "s3":
		if c.Report.S3Bucket == "" {
			return fmt.Errorf("config: report s3_bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown report backend: %s", c.Report.Backend)
	}
	switch c.Report.Format {
	case "csv", "csv-gz", "parquet":
	default:
		return fmt.Errorf("config: unknown report format: %s", c.Report.Format)
	}
	if c.Audit.Enabled && c.Audit.Dir == "" {
		return fmt.Errorf("config: audit dir is required when auditing is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

// setMillis reads an integer count of milliseconds, matching the upstream
// scripts' env conventions.
func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(parsed) * time.Millisecond
		}
	}
}
