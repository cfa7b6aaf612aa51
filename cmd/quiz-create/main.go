// Command quiz-create builds quizzes from a CSV: one content shell per quiz
// code, questions created or reused by code, then review and publish.
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
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/quiz"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/report"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

func main() {
	if err := run(); err != nil {
		slog.Error("quiz-create failed", "error", err)
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
	log := logging.RunLogger(runID, cfg.Quiz.CSVPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

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

	c := quiz.NewCreator(cfg.Quiz, quiz.NewSessionAPI(client, sess), sink)
	if err := c.Run(ctx); err != nil {
		return err
	}

	run := audit.RunInfo{Tool: "quiz-create", RunID: runID, InputPath: cfg.Quiz.CSVPath}
	if err := auditor.EmitRun(ctx, run, nil); err != nil {
		log.Warn("audit emission failed", "error", err)
	}
	return nil
}
