package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxport/internal/config"
	"voxport/internal/daemon"
	"voxport/internal/dataset"
	"voxport/internal/jobs"
	"voxport/internal/logging"
	"voxport/internal/objectstore"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "override configured log level")
	flag.Parse()

	cfg, resolvedPath, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !exists {
		return fmt.Errorf("no configuration found at %s; run `voxport config init` first", resolvedPath)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	records, err := dataset.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer records.Close()

	jobStore, err := jobs.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer jobStore.Close()

	store, err := objectstore.New(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	d, err := daemon.New(cfg, records, jobStore, store, logger)
	if err != nil {
		return err
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	logger.Info("daemon running",
		logging.String("config", resolvedPath),
		logging.String("api", d.APIAddr()))

	<-signalCtx.Done()
	logger.Info("shutdown signal received")

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timed out")
	}
	return nil
}
