package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/csvio"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/metrics"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/report"
)

const reportName = "enrollment-status"

var requiredHeaders = []string{"learner_profile_code", "email"}

// Orchestrator drives a bulk enrollment run: it reads the roster CSV,
// processes rows in sequential batches of concurrent per-user pipelines,
// and writes one status report row per enrollment attempt.
type Orchestrator struct {
	cfg    config.EnrollConfig
	api    API
	sink   report.Sink
	ledger *Ledger
	stats  *Stats
	mets   *metrics.Metrics
	log    *slog.Logger
}

// Summary is the final tally of a run.
type Summary struct {
	Users     int
	Results   int
	Successes int
	Failures  int
	ReportURI string
}

func New(cfg config.EnrollConfig, api API, sink report.Sink) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		api:    api,
		sink:   sink,
		ledger: NewLedger(),
		stats:  &Stats{},
		mets:   metrics.Get(),
		log:    logging.Component("enroll"),
	}
}

// Run processes the whole roster and writes the status report. It returns an
// error for run-level problems (unreadable input, bad headers, report write
// failure); per-user and per-course problems are settled into report rows
// instead.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if o.cfg.BatchSize <= 0 {
		return Summary{}, fmt.Errorf("batch size must be positive, got %d", o.cfg.BatchSize)
	}

	rows, err := csvio.ReadAll(o.cfg.InputPath)
	if err != nil {
		return Summary{}, fmt.Errorf("read input: %w", err)
	}
	headers := csvio.Headers(rows)
	if err := csvio.ValidateHeaders(headers, requiredHeaders); err != nil {
		return Summary{}, err
	}

	var records []Record
	for _, m := range csvio.RecordMaps(headers, rows[1:]) {
		records = append(records, Record{Email: m["email"], ProfileCell: m["learner_profile_code"]})
	}

	start := time.Now()
	totalBatches := (len(records) + o.cfg.BatchSize - 1) / o.cfg.BatchSize
	o.log.Info("starting enrollment run",
		"input", o.cfg.InputPath,
		"users", len(records),
		"batch_size", o.cfg.BatchSize,
		"batches", totalBatches)

	var all []Result
	for i := 0; i < len(records); i += o.cfg.BatchSize {
		end := min(i+o.cfg.BatchSize, len(records))
		o.log.Info("processing batch", "batch", i/o.cfg.BatchSize+1, "total", totalBatches, "users", end-i)
		all = append(all, o.processBatch(ctx, records[i:end])...)
		if o.mets != nil {
			o.mets.BatchesProcessed.Inc()
		}
	}

	reportRows := make([][]string, len(all))
	for i, r := range all {
		reportRows[i] = r.Row()
	}
	if err := o.sink.Write(ctx, reportName, ReportHeader, reportRows); err != nil {
		return Summary{}, fmt.Errorf("write report: %w", err)
	}

	succ, fail := o.stats.Snapshot()
	summary := Summary{
		Users:     len(records),
		Results:   len(all),
		Successes: succ,
		Failures:  fail,
		ReportURI: o.sink.URI(reportName),
	}
	o.log.Info("finished processing all enrollments",
		"users", summary.Users,
		"successes", summary.Successes,
		"failures", summary.Failures,
		"elapsed", time.Since(start),
		"report", summary.ReportURI)
	return summary, nil
}

// processBatch runs every user in the batch concurrently and settles all of
// them: a panicking user pipeline yields one synthetic Failure row rather
// than taking the batch down.
func (o *Orchestrator) processBatch(ctx context.Context, batch []Record) []Result {
	perUser := make([][]Result, len(batch))
	var wg sync.WaitGroup
	for i, rec := range batch {
		wg.Add(1)
		go func(i int, rec Record) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					perUser[i] = []Result{failure("unknown", placeholder, placeholder,
						fmt.Sprintf("Batch processing failed: %v", r))}
				}
			}()
			perUser[i] = o.processUser(ctx, rec)
		}(i, rec)
	}
	wg.Wait()

	var flat []Result
	for _, results := range perUser {
		flat = append(flat, results...)
	}
	return flat
}
