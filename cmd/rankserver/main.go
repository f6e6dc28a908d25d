// Command rankserver serves the results API: it runs the scoring
// pipeline on demand (POST /api/v1/runs) and exposes the latest run's
// shortlists, scores, and guardrail audit over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fundrank/internal/app"
	"fundrank/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	port := flag.Int("port", 0, "listen port (overrides configuration)")
	runOnStart := flag.Bool("run-on-start", false, "trigger a pipeline run at startup")
	flag.Parse()

	if err := run(*configPath, *port, *runOnStart); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, runOnStart bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	if runOnStart {
		if _, err := application.Runs.Start(context.Background()); err != nil {
			application.Logger.Warn("startup run not triggered", "error", err)
		}
	}

	return application.Run(context.Background())
}
