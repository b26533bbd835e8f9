package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/syntrixbase/daybook/internal/config"
	"github.com/syntrixbase/daybook/internal/logging"
	"github.com/syntrixbase/daybook/internal/services"
)

func main() {
	configDir := flag.String("config", "config", "Directory holding config.yml and config.local.yml")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() {
		if err := logging.Shutdown(); err != nil {
			log.Printf("Failed to close log files: %v", err)
		}
	}()

	slog.Info("Starting Daybook...",
		"storage", cfg.Storage.Backend,
		"pubsub", cfg.PubSub.Provider,
		"port", cfg.Server.HTTPPort,
	)

	// 2. Initialize Service Manager
	mgr := services.NewManager(cfg, slog.Default())

	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	err = mgr.Init(initCtx)
	initCancel()
	if err != nil {
		slog.Error("Failed to initialize services", "error", err)
		_ = mgr.Shutdown(context.Background())
		os.Exit(1)
	}

	// 3. Start Services
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if err := mgr.Start(bgCtx); err != nil {
		slog.Error("Failed to start services", "error", err)
		bgCancel()
		_ = mgr.Shutdown(context.Background())
		os.Exit(1)
	}

	// 4. Wait for Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("Shutting down services...", "signal", sig.String())
	case err := <-mgr.Errors():
		slog.Error("Service failed, shutting down", "error", err)
	}

	// Cancel background tasks first
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
	}
	slog.Info("All services stopped.")
}
