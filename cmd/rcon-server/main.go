package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rconhub/database"
	"rconhub/internal/backend"
	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/microservices/rcon"
	"rconhub/internal/repository"
)

func main() {
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup structured logging
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := config.NewStore(cfg, config.LoadConfig)
	h := hub.New(store, logger)
	opts := rcon.Options{Hub: h, Logger: logger}

	if cfg.DatabaseURL != "" {
		cleanup := wireDatabase(ctx, cfg.DatabaseURL, logger, &opts)
		defer cleanup()
	}

	if cfg.RedisURL != "" {
		relay, err := hub.NewRedisRelay(cfg.RedisURL, h, logger)
		if err != nil {
			// broadcasts stay local
			logger.Warn("broadcast_relay_unavailable", "error", err)
		} else {
			h.SetRelay(relay)
			go relay.Run(ctx)
			defer relay.Close()
		}
	}

	console := backend.NewConsole(cfg.ServerName, rcon.Version, func(text string) int {
		return h.Publish(ctx, hub.LogLine{Level: hub.LevelInfo, Text: text})
	}, logger)
	opts.Backend = console

	server := rcon.NewServer(store, opts)
	// host events that operators should see live
	operators := slog.New(server.LogHandler(slog.LevelInfo))

	if err := server.Start(ctx); err != nil {
		logger.Error("server_start_failed", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := server.Reload(); err != nil {
				operators.Warn("configuration reload failed", "error", err)
				continue
			}
			level.Set(store.Get().LogLevel())
			operators.Info("configuration reloaded")
			continue
		}

		logger.Info("received_shutdown_signal", "signal", sig.String())
		operators.Warn("server shutting down")
		if err := server.Stop(context.Background()); err != nil {
			logger.Error("server_stop_failed", "error", err)
		}
		cancel()
		logger.Info("server_stopped_gracefully")
		return
	}
}

// wireDatabase connects the account store and the audit trail. Failures are
// logged and the server runs without them.
func wireDatabase(ctx context.Context, dsn string, logger *slog.Logger, opts *rcon.Options) func() {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	gdb, err := database.OpenGorm(dsn, logger)
	if err != nil {
		logger.Warn("account_store_unavailable", "error", err)
	} else {
		closers = append(closers, func() { _ = database.CloseGorm(gdb) })
		accounts := repository.NewAccountRepository(gdb)
		if err := accounts.Migrate(ctx); err != nil {
			logger.Warn("account_migration_failed", "error", err)
		}
		opts.Identities = accounts
		opts.Bans = accounts
		opts.OnLogin = func(ctx context.Context, p rcon.Principal) {
			if p.Method != "account" {
				return
			}
			if err := accounts.TouchLogin(ctx, p.Name); err != nil {
				logger.Debug("touch_login_failed", "name", p.Name, "error", err)
			}
		}
	}

	pool, err := database.ConnectPool(ctx, dsn, logger)
	if err != nil {
		logger.Warn("audit_trail_unavailable", "error", err)
		return cleanup
	}
	auditRepo := repository.NewAuditPostgresRepo(pool)
	if err := auditRepo.EnsureSchema(ctx); err != nil {
		logger.Warn("audit_schema_failed", "error", err)
		pool.Close()
		return cleanup
	}

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writer := repository.NewAuditWriter(auditRepo, logger)
	go writer.StartBatchWriter(writerCtx)
	opts.Audit = writer
	closers = append(closers, auditRepo.Close, func() {
		// flush what is queued before the pool goes away
		stopWriter()
		<-writer.Done()
	})
	return cleanup
}
