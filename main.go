package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/handlers"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/logging"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/middleware"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/propagation"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("snowflake_account", cfg.Snowflake.Account),
		zap.String("history_path", cfg.History.Path))

	registry, err := propagation.NewStandardRegistry(cfg.Propagation.RulesPath)
	if err != nil {
		logger.Fatal("failed to load propagation rules", zap.Error(err))
	}
	executor := propagation.NewExecutor(registry, logger)

	snowflake := services.NewSnowflakeService(cfg.Snowflake, logger)
	sessions := services.NewSessionManager(cfg.Session, logger)
	defer sessions.Close()

	cache := services.NewMetadataCache(cfg.Cache, logger)
	defer cache.Close()

	history, err := services.NewHistoryService(cfg.History, logger)
	if err != nil {
		logger.Fatal("failed to open query history store", zap.Error(err))
	}
	defer history.Close()

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	history.RunScheduler(pruneCtx, 6*time.Hour)

	pivots, err := services.NewPivotFeedbackService(history.DB(), logger)
	if err != nil {
		logger.Fatal("failed to open pivot feedback store", zap.Error(err))
	}

	queries := services.NewQueryService(cfg.Snowflake, cache, history, logger)
	metadata := services.NewMetadataService(snowflake, cache, logger)
	tenantConfig := services.NewTenantConfigService(snowflake, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, sessions, cache, logger).RegisterRoutes(mux)
	handlers.NewConnectionHandler(snowflake, sessions, logger).RegisterRoutes(mux)
	handlers.NewMetadataHandler(metadata, sessions, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(queries, history, sessions, logger).RegisterRoutes(mux)
	handlers.NewPropagationHandler(executor, registry, logger).RegisterRoutes(mux)
	handlers.NewTenantConfigHandler(tenantConfig, sessions, logger).RegisterRoutes(mux)
	handlers.NewPivotHandler(pivots, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler: middleware.RequestLogger(logger)(mux),
	}

	go func() {
		logger.Info("starting mdlh-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
