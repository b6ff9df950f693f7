// Package main is the entry point for the pipescope observer sidecar.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/monitoring"
	"github.com/voxlab/pipescope/internal/observer"
	"github.com/voxlab/pipescope/internal/server"
	"github.com/voxlab/pipescope/internal/store"
)

const banner = `
        _
  _ __ (_)_ __   ___  ___  ___ ___  _ __   ___
 | '_ \| | '_ \ / _ \/ __|/ __/ _ \| '_ \ / _ \
 | |_) | | |_) |  __/\__ \ (_| (_) | |_) |  __/
 | .__/|_| .__/ \___||___/\___\___/| .__/ \___|
 |_|     |_|                       |_|
`

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "pipescope", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override.
	_ = godotenv.Load()
}

// resolveLogFormat turns "auto" into console on terminals, json elsewhere.
func resolveLogFormat(format string) string {
	if format != "auto" && format != "" {
		return format
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "console"
	}
	return "json"
}

func main() {
	loadEnvFiles()

	configPath := flag.String("config", "", "path to config file (required)")
	debug := flag.Bool("debug", false, "enable debug logging")
	noBanner := flag.Bool("no-banner", false, "suppress startup banner")
	flag.Parse()

	if !*noBanner {
		fmt.Print(banner)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipescope: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Monitoring.LogLevel
	if *debug {
		level = "debug"
	}
	loggerCfg := monitoring.LoggerConfig{
		Level:  level,
		Format: resolveLogFormat(cfg.Monitoring.LogFormat),
		Output: cfg.Monitoring.LogOutput,
	}
	monitoring.Global(loggerCfg)

	runID := uuid.NewString()
	startedAt := time.Now()
	log.Info().Str("run_id", runID).Msg("pipescope starting")

	telemetry, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	var runs *store.RunStore
	if cfg.Store.Path != "" {
		runs, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open run store")
		}
	}

	obs, err := observer.New(
		cfg.Observer,
		frames.NewWireSerializer(),
		monitoring.New(loggerCfg),
		observer.WithTelemetry(telemetry),
		observer.WithSlowDecodeThreshold(time.Duration(cfg.Monitoring.SlowDecodeThresholdMs)*time.Millisecond),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create observer")
	}
	obs.Attach()

	srv := server.New(cfg.Server, obs, runs, runID)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	// Archive the run before tearing the observer down.
	obs.PrintSummary()
	if runs != nil {
		summary, err := json.Marshal(obs.Summary())
		if err == nil {
			err = runs.SaveRun(store.RunRecord{
				ID:        runID,
				StartedAt: startedAt,
				EndedAt:   time.Now(),
				Summary:   summary,
			})
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to archive run summary")
		}
		if err := runs.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close run store")
		}
	}

	obs.Close()
	_ = telemetry.Close()
	log.Info().Str("run_id", runID).Msg("pipescope stopped")
}
