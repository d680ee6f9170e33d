package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nuam/internal/config"
	"nuam/internal/listener"
	"nuam/internal/storage"
	"nuam/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := util.NewLogger(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, closeFn, err := listener.Wire(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeFn()

	log.Info("upload listener started", "provider", cfg.ListenerProvider, "intervalSec", cfg.ListenerIntervalSec)
	return svc.Run(ctx)
}
