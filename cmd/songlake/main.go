package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/apperrors"
	"github.com/wdm0006/songlake/pkg/config"
	"github.com/wdm0006/songlake/pkg/etl"
	"github.com/wdm0006/songlake/pkg/storage"
)

var (
	version = "0.1.0-dev"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to a YAML or TOML config file (optional)")
	credentials := flag.String("credentials", "", "Path to an ini credentials file with an [AWS CREDS] section (default dl.cfg when present)")
	pipeline := flag.String("pipeline", "all", "Pipelines to run: all, song or log")
	flag.Parse()

	if *showVersion {
		fmt.Println("songlake", version)
		return
	}
	os.Exit(run(*configPath, *credentials, *pipeline))
}

func run(configPath, credentials, pipeline string) int {
	which, err := etl.ParsePipelines(pipeline)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	cfg, err := config.Load(configPath, credentials)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, apperrors.ErrInvalidConfig) || errors.Is(err, apperrors.ErrMissingCredentials) {
			return 2
		}
		return 1
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := storage.Open(cfg.InputRoot, cfg.AWS.S3Options(), logger)
	if err != nil {
		logger.Error("Failed to open input store", zap.String("root", cfg.InputRoot), zap.Error(err))
		return 2
	}
	out, err := storage.Open(cfg.OutputRoot, cfg.AWS.S3Options(), logger)
	if err != nil {
		logger.Error("Failed to open output store", zap.String("root", cfg.OutputRoot), zap.Error(err))
		return 2
	}
	job, err := etl.New(cfg, in, out, logger)
	if err != nil {
		logger.Error("Invalid job settings", zap.Error(err))
		return 2
	}

	logger.Info("Starting songlake",
		zap.String("version", version),
		zap.String("pipeline", string(which)),
		zap.Stringer("input", in),
		zap.Stringer("output", out))
	report, err := job.Run(ctx, which)
	if cfg.ReportPath != "" && report != nil {
		if werr := report.WriteFile(cfg.ReportPath); werr != nil {
			logger.Warn("Failed to write report", zap.String("path", cfg.ReportPath), zap.Error(werr))
		}
	}
	if err != nil {
		logger.Error("Job failed", zap.Error(err))
		return 1
	}
	logger.Info("Job finished", zap.String("duration", report.ExecutionTime), zap.Int("tables", len(report.Tables)))
	return 0
}
