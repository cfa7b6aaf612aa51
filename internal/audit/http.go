package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
)

// HTTPEmitter POSTs audit events to a collector, with a local file backup
// written first.
type HTTPEmitter struct {
	cfg          config.AuditConfig
	client       *http.Client
	chainTracker *ChainTracker
	backup       *FileBackup
}

// NewHTTPEmitter creates a new HTTP emitter.
func NewHTTPEmitter(cfg config.AuditConfig) (*HTTPEmitter, error) {
	chainTracker, err := NewChainTracker(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create chain tracker: %w", err)
	}
	backup, err := NewFileBackup(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}
	return &HTTPEmitter{
		cfg:          cfg,
		client:       &http.Client{Timeout: 30 * time.Second},
		chainTracker: chainTracker,
		backup:       backup,
	}, nil
}

// EmitRun seals the event, backs it up locally, then POSTs it.
func (e *HTTPEmitter) EmitRun(ctx context.Context, run RunInfo, counts map[string]int64) error {
	evt := seal(e.chainTracker, run, counts)

	log := logging.Component("audit")
	log.Info("emitting run event", "tool", run.Tool, "run_id", run.RunID, "event_hash", evt.Chain.EventHash)

	// Backup first so the event survives a collector outage.
	if err := e.backup.Save(evt); err != nil {
		log.Warn("backup failed", "error", err)
	}

	if err := e.postWithRetry(ctx, evt); err != nil {
		return fmt.Errorf("audit emit failed: %w", err)
	}

	if err := e.chainTracker.SetHead(run.ChainKey(), evt.Chain.EventHash); err != nil {
		log.Warn("failed to update chain head", "error", err)
	}
	return nil
}

// postWithRetry sends the event with exponential backoff.
func (e *HTTPEmitter) postWithRetry(ctx context.Context, evt *Event) error {
	log := logging.Component("audit")
	var lastErr error
	retries := 3
	delay := time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		err := e.post(ctx, evt)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < retries {
			log.Warn("emit attempt failed, retrying",
				"attempt", attempt, "retries", retries, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", retries, lastErr)
}

func (e *HTTPEmitter) post(ctx context.Context, evt *Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
}

// Close releases resources.
func (e *HTTPEmitter) Close() error {
	return nil
}
