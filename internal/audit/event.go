// Package audit emits a tamper-evident event per bulk run. Events are hash
// chained per tool so a collector can detect dropped or altered runs, backed
// up locally as JSON, and optionally POSTed to an HTTP collector.
package audit

import (
	"time"
)

// Event is one run-level audit record.
type Event struct {
	Version   string    `json:"version"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`

	Run      RunInfo          `json:"run"`
	Counts   map[string]int64 `json:"counts"`
	Producer ProducerInfo     `json:"producer"`
	Chain    ChainInfo        `json:"chain"`
}

// RunInfo identifies the run being audited.
type RunInfo struct {
	Tool      string `json:"tool"`
	RunID     string `json:"run_id"`
	InputPath string `json:"input_path"`
	ReportURI string `json:"report_uri"`
}

// ProducerInfo identifies the software that produced the run.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// ChainInfo links consecutive events per tool for a tamper-evident trail.
type ChainInfo struct {
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
}

// ChainKey returns the chain this run's event belongs to. Each tool keeps
// its own chain so interleaved runs of different tools stay linkable.
func (r RunInfo) ChainKey() string {
	return r.Tool
}
