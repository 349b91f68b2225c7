// cmd/multidb/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/api"
	"github.com/FairForge/multidb/internal/config"
	"github.com/FairForge/multidb/internal/database"
	"github.com/FairForge/multidb/internal/deprecation"
	"github.com/FairForge/multidb/internal/logging"
	"github.com/FairForge/multidb/internal/metrics"
	"github.com/FairForge/multidb/internal/replica"
	"github.com/FairForge/multidb/internal/router"
)

func main() {
	configPath := flag.String("config", config.GetEnvOrDefault("MULTIDB_CONFIG", ""), "path to the yaml config file")
	migrate := flag.Bool("migrate", false, "create the demo schema on the primary and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "multidb: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	config.LoadFromEnv(cfg)

	// Create logger
	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "multidb: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	deprecation.SetLogger(logger)

	if len(cfg.Databases) == 0 {
		cfg.Databases = map[string]database.Config{cfg.Primary: database.GetTestConfig()}
		logger.Info("no databases configured, using environment defaults", zap.String("alias", cfg.Primary))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	reg, err := database.OpenAll(cfg.Databases)
	if err != nil {
		logger.Fatal("failed to open databases", zap.Error(err))
	}
	defer func() { _ = reg.Close() }()

	replicas := cfg.Replicas()
	if cfg.Test {
		reg.MirrorReplicas(cfg.Primary, replicas)
		logger.Info("test mode, replicas mirror the primary", zap.Strings("replicas", replicas))
	}

	collector := metrics.NewCollector()
	sel := replica.New(cfg.Primary, replicas, replica.WithLogger(logger.Named("replica")))
	collector.SetReplicas(sel.Len())

	rt := router.NewPinning(sel)
	rt.SetObserver(collector)
	routed := database.NewRouted(rt, reg, logger.Named("database"))

	if *migrate {
		if err := routed.Migrate(context.Background(), cfg.Primary, "notes", api.NotesSchema); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		return
	}

	server := api.NewServer(cfg, logger, routed, reg, collector)

	// Handle shutdown gracefully
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("multidb started",
		zap.Int("port", cfg.Server.Port),
		zap.String("primary", cfg.Primary),
		zap.Strings("replicas", sel.Aliases()),
		zap.Duration("pin_window", cfg.PinWindow()))

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	<-done
}
