// Package main implements the loadcast batch job.
// loadcast reads historical hourly demand, fits a forecasting model and writes
// a next-day hourly load report and a monthly price report.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/cmd/loadcast/logger"
	"github.com/HatiCode/loadcast/cmd/loadcast/metrics"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("forecast run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run executes one forecast and prints a confirmation line to out.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting loadcast",
		"version", "v0.1.0",
		"input", cfg.Input,
		"model", cfg.Model,
		"horizon", cfg.Horizon,
		"step", cfg.Step,
	)

	m := metrics.New(cfg.Model)
	if cfg.MetricsFile != "" {
		defer func() {
			if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Error("failed to write metrics", "file", cfg.MetricsFile, "error", err)
				return
			}
			logger.Debug("wrote metrics", "file", cfg.MetricsFile)
		}()
	}

	p, err := NewFromConfig(cfg, m, logger)
	if err != nil {
		m.RecordError("setup")
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Forecast complete: %s (%d hours) and %s (%d days, predicted cost %s) written to %s\n",
		cfg.NextDayFile, len(res.NextDay),
		cfg.MonthlyFile, len(res.Monthly), res.TotalCost.StringFixed(2),
		cfg.OutputDir,
	)
	return nil
}
