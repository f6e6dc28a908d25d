// Command fundrank runs the full scoring pipeline once: load the CVM
// dataset, compute features, score each investor profile, apply the
// guardrails, and export the ranked shortlists.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fundrank/internal/app"
	"fundrank/internal/config"
	"fundrank/internal/infrastructure"
	"fundrank/internal/operations"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	asOf := flag.String("as-of", "", "reference date (YYYY-MM-DD, defaults to today)")
	dataDir := flag.String("data", "", "dataset directory (overrides configuration)")
	outDir := flag.String("out", "", "output directory (overrides configuration)")
	withFetch := flag.Bool("fetch", false, "download missing dataset months before running")
	flag.Parse()

	if err := run(*configPath, *asOf, *dataDir, *outDir, *withFetch); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, asOf, dataDir, outDir string, withFetch bool) error {
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
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	logger := infrastructure.NewLogger(cfg.Logging)

	pipeline, err := app.BuildPipeline(cfg, logger, nil, app.PipelineOptions{
		WithFetch:  withFetch,
		WithExport: true,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs := app.NewRunManager(pipeline, cfg.Run.AsOfDate, logger)
	state, err := runs.RunOnce(ctx)
	if err != nil {
		return err
	}

	logger.Info("run finished",
		"run_id", state.RunID,
		"profiles", len(cfg.Profiles),
		"shortlisted", len(state.Shortlist),
		"output_dir", cfg.Paths.OutputDir,
	)
	printSummary(state)
	return nil
}

func printSummary(state *operations.State) {
	fmt.Printf("run %s (as of %s)\n", state.RunID, state.AsOf.Format("2006-01-02"))
	for _, st := range state.StageStates() {
		fmt.Printf("  %-24s %s\n", st.Name(), st.Status())
	}
	fmt.Printf("shortlisted funds: %d\n", len(state.Shortlist))
}
