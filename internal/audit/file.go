package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
)

// FileBackup saves audit events as local JSON files.
type FileBackup struct {
	dir string
}

// NewFileBackup creates a new file backup handler.
func NewFileBackup(dir string) (*FileBackup, error) {
	if dir == "" {
		dir = "./audit"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileBackup{dir: dir}, nil
}

// Save writes an audit event to a local JSON file named by tool and run.
func (f *FileBackup) Save(evt *Event) error {
	filename := fmt.Sprintf("%s_%s.json", evt.Run.Tool, evt.Run.RunID)
	path := filepath.Join(f.dir, filename)

	data, err := json.MarshalIndent(evt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// FileOnlyEmitter writes events to local files only, for deployments with
// no audit collector.
type FileOnlyEmitter struct {
	chainTracker *ChainTracker
	backup       *FileBackup
}

// NewFileOnlyEmitter creates an emitter that only writes to local files.
func NewFileOnlyEmitter(dir string) (*FileOnlyEmitter, error) {
	chainTracker, err := NewChainTracker(dir)
	if err != nil {
		return nil, fmt.Errorf("create chain tracker: %w", err)
	}
	backup, err := NewFileBackup(dir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}
	return &FileOnlyEmitter{chainTracker: chainTracker, backup: backup}, nil
}

// EmitRun seals and saves one run event.
func (e *FileOnlyEmitter) EmitRun(_ context.Context, run RunInfo, counts map[string]int64) error {
	evt := seal(e.chainTracker, run, counts)

	log := logging.Component("audit")
	log.Info("run event recorded", "tool", run.Tool, "run_id", run.RunID, "event_hash", evt.Chain.EventHash)

	if err := e.backup.Save(evt); err != nil {
		return err
	}
	if err := e.chainTracker.SetHead(run.ChainKey(), evt.Chain.EventHash); err != nil {
		log.Warn("failed to update chain head", "error", err)
	}
	return nil
}

// Close releases resources.
func (e *FileOnlyEmitter) Close() error {
	return nil
}

// seal fills in the event envelope: id, timestamp, chain link, and hash.
func seal(ct *ChainTracker, run RunInfo, counts map[string]int64) *Event {
	prevHash, _ := ct.GetHead(run.ChainKey())
	evt := &Event{
		Version:   "1.0",
		EventType: "bulk_run",
		EventID:   GenerateEventID(),
		Timestamp: time.Now().UTC(),
		Run:       run,
		Counts:    counts,
		Producer:  producer(),
		Chain:     ChainInfo{PrevEventHash: prevHash},
	}
	evt.Chain.EventHash = ComputeEventHash(evt)
	return evt
}
