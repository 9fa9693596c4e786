// Package main is the entry point for the stockledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/ledger"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	// .env is optional, real deployments pass env directly
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockledger server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if minConns := getEnvInt("DB_MIN_CONNS", 0); minConns > 0 {
		poolCfg.MinConns = int32(minConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Tenant token service (optional) ---
	var tokenService *auth.TokenService
	if secret := getEnv("TENANT_TOKEN_SECRET", ""); secret != "" {
		tokenCfg := auth.DefaultTokenConfig(secret)
		if ttl := getEnvDuration("TENANT_TOKEN_TTL", 0); ttl > 0 {
			tokenCfg.TokenTTL = ttl
		}
		tokenService = auth.NewTokenService(tokenCfg)
		log.Info("tenant token validation enabled")
	} else {
		log.Warn("TENANT_TOKEN_SECRET not set, tenants are resolved by header only")
	}

	// --- Ledger configuration ---
	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.EnforceSufficiency = getEnvBool("STOCK_ENFORCE_SUFFICIENCY", ledgerCfg.EnforceSufficiency)
	ledgerCfg.MaintainRunningTotals = getEnvBool("STOCK_RUNNING_TOTALS", ledgerCfg.MaintainRunningTotals)
	if retries := getEnvInt("STOCK_CONFLICT_RETRIES", 0); retries > 0 {
		ledgerCfg.MaxConflictRetries = retries
	}

	// --- Router ---
	router, err := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		TokenService:   tokenService,
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 2*time.Minute),
		LedgerConfig:   ledgerCfg,
	})
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
