package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := ParseFlags()

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile)
	if err != nil {
		log.Printf("[FATAL] Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
		return 2
	}
	if flags.Mode != "" {
		gCfg.Mode = flags.Mode
	}

	runID := uuid.New().String()
	zLogger, err := logger.NewWithRunID(gCfg.LogConfig, runID)
	if err != nil {
		log.Printf("[FATAL] Could not initialize logger: %v", err)
		return 2
	}
	zLogger.Info().Str("run_id", runID).Str("mode", gCfg.Mode).Msg("bounty-crawl starting")

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Error().Err(err).Msg("Configuration validation failed")
		return 2
	}

	app, err := newApplication(gCfg, zLogger)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to assemble application")
		return 2
	}
	defer app.close()

	if err := app.start(); err != nil {
		zLogger.Error().Err(err).Msg("Failed to start application services")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zLogger.Info().Str("signal", sig.String()).Msg("Received interrupt signal, initiating graceful shutdown")
		cancel()
	}()

	if gCfg.Mode == "automated" {
		app.runAutomated(ctx)
		zLogger.Info().Msg("bounty-crawl finished (automated mode)")
		return 0
	}

	code := app.runScan(ctx)
	zLogger.Info().Int("exit_code", code).Msg("bounty-crawl finished (onetime mode)")
	return code
}
