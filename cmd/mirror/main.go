package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/nostr-mirror/internal/app"
	"github.com/Adda-Baaj/nostr-mirror/internal/config"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mirror start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("mirror starting", "config", map[string]any{
		"app_name":      cfg.AppName,
		"env":           cfg.Env,
		"storage_type":  cfg.StorageType,
		"control_addr":  cfg.ControlAddr,
		"auto_start":    cfg.AutoStart,
		"blossom":       cfg.BlossomServers,
		"endpoints":     cfg.DefaultEndpoints,
		"interval_unit": cfg.IntervalUnit.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, err := app.NewMirror(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize mirror", "error", err)
		return err
	}

	if err := mirror.Run(ctx); err != nil {
		return fmt.Errorf("mirror run: %w", err)
	}

	return nil
}
