// Command enroll-learners bulk-enrolls learners from a roster CSV into the
// courses of their learner profiles and writes a per-attempt status report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/audit"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/enroll"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/metrics"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/report"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

func main() {
	if err := run(); err != nil {
		slog.Error("enroll-learners failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})

	runID := logging.NewRunID()
	log := logging.RunLogger(runID, cfg.Enroll.InputPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metrics.Init("")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	client := sunbird.New(cfg.API)
	sess, err := client.Login(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info("authenticated", "channel", sess.ChannelID)

	sink, err := report.NewSink(cfg.Report)
	if err != nil {
		return fmt.Errorf("create report sink: %w", err)
	}
	defer sink.Close()

	auditor := audit.NewEmitter(cfg.Audit)
	defer auditor.Close()

	orch := enroll.New(cfg.Enroll, enroll.NewSessionAPI(client, sess), sink)
	sum, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	run := audit.RunInfo{
		Tool:      "enroll-learners",
		RunID:     runID,
		InputPath: cfg.Enroll.InputPath,
		ReportURI: sum.ReportURI,
	}
	counts := map[string]int64{
		"users":     int64(sum.Users),
		"results":   int64(sum.Results),
		"successes": int64(sum.Successes),
		"failures":  int64(sum.Failures),
	}
	if err := auditor.EmitRun(ctx, run, counts); err != nil {
		log.Warn("audit emission failed", "error", err)
	}

	log.Info("run complete",
		"users", sum.Users,
		"successes", sum.Successes,
		"failures", sum.Failures,
		"report", sum.ReportURI)
	return nil
}
