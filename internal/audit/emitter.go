package audit

import (
	"context"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
)

// Producer identity, stamped into every event. Version and GitSHA are set
// at build time via -ldflags.
var (
	Version = "dev"
	GitSHA  = "unknown"
)

func producer() ProducerInfo {
	return ProducerInfo{Name: "sunbird-bulk-ops", Version: Version, GitSHA: GitSHA}
}

// Emitter is the interface for run audit emission.
type Emitter interface {
	EmitRun(ctx context.Context, run RunInfo, counts map[string]int64) error
	Close() error
}

// NewEmitter creates an appropriate emitter based on configuration.
func NewEmitter(cfg config.AuditConfig) Emitter {
	log := logging.Component("audit")

	if !cfg.Enabled {
		return &noopEmitter{}
	}

	if cfg.Endpoint != "" {
		emitter, err := NewHTTPEmitter(cfg)
		if err != nil {
			log.Warn("http emitter unavailable, falling back to file-only", "error", err)
			return fileOnlyOrNoop(cfg)
		}
		log.Info("audit events to http collector", "endpoint", cfg.Endpoint)
		return emitter
	}
	return fileOnlyOrNoop(cfg)
}

func fileOnlyOrNoop(cfg config.AuditConfig) Emitter {
	log := logging.Component("audit")
	emitter, err := NewFileOnlyEmitter(cfg.Dir)
	if err != nil {
		log.Warn("file emitter unavailable, auditing disabled", "error", err)
		return &noopEmitter{}
	}
	log.Info("audit events to local files", "dir", cfg.Dir)
	return emitter
}

type noopEmitter struct{}

func (*noopEmitter) EmitRun(context.Context, RunInfo, map[string]int64) error { return nil }
func (*noopEmitter) Close() error                                             { return nil }
