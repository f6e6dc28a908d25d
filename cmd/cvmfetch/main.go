// Command cvmfetch downloads the CVM open-data archives (daily
// informes and CDA portfolio files) for the months a run needs,
// extracting the CSVs into the dataset directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fundrank/internal/config"
	"fundrank/internal/fetch"
	"fundrank/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	asOf := flag.String("as-of", "", "reference date (YYYY-MM-DD, defaults to today)")
	dataDir := flag.String("data", "", "dataset directory (overrides configuration)")
	months := flag.Int("months", 0, "number of months to fetch (overrides configuration)")
	flag.Parse()

	if err := run(*configPath, *asOf, *dataDir, *months); err != nil {
		slog.Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, asOf, dataDir string, months int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if asOf != "" {
		cfg.Run.AsOf = asOf
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	if months > 0 {
		cfg.Fetch.Months = months
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	logger := infrastructure.NewLogger(cfg.Logging)

	asOfDate, err := cfg.Run.AsOfDate()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.NewFetcher(
		cfg.Fetch.BaseURL,
		cfg.Fetch.RequestsPerSec,
		cfg.Fetch.Burst,
		cfg.Fetch.Timeout,
		logger,
	)
	periods := fetch.MonthsBack(asOfDate, cfg.Fetch.Months)

	logger.Info("fetching dataset",
		"months", cfg.Fetch.Months,
		"from", periods[0].String(),
		"to", periods[len(periods)-1].String(),
		"data_dir", cfg.Paths.DataDir,
	)

	if err := fetcher.FetchDaily(ctx, periods, cfg.Paths.DataDir); err != nil {
		return err
	}
	if err := fetcher.FetchHoldings(ctx, periods, cfg.Paths.DataDir); err != nil {
		return err
	}

	logger.Info("fetch complete", "data_dir", cfg.Paths.DataDir)
	return nil
}
