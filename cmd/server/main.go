package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"partsledger/backend/internal/cache"
	"partsledger/backend/internal/config"
	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/httpapi"
	"partsledger/backend/internal/sequence"
	"partsledger/backend/internal/service"
	"partsledger/backend/internal/store"
	"partsledger/backend/internal/store/file"
	"partsledger/backend/internal/store/memory"
	pgstore "partsledger/backend/internal/store/postgres"
	"partsledger/backend/internal/store/redisstore"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("record store unavailable; refusing to start", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	records := store.NewRecords(backend, logger)
	closers = append(closers, records.Close)
	logger.Info("record store ready", zap.String("backend", cfg.StoreBackend))

	balances := cache.BalanceCache(cache.NewMemoryBalanceCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisBalanceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using in-process balance cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			balances = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("balance cache: redis")
		}
	} else {
		logger.Info("balance cache: memory")
	}

	svc := service.New(records, sequence.New(records), balances, logger, service.Options{
		BalanceCacheTTL: time.Duration(cfg.BalanceCacheTTLSeconds) * time.Second,
	})

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	if err := auth.AddUser(cfg.AdminUsername, cfg.AdminPassword, domain.RoleAdmin); err != nil {
		logger.Fatal("admin account", zap.Error(err))
	}
	if cfg.ViewerUsername != "" {
		if err := auth.AddUser(cfg.ViewerUsername, cfg.ViewerPassword, domain.RoleViewer); err != nil {
			logger.Fatal("viewer account", zap.Error(err))
		}
	}

	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginRate:     cfg.LoginRateLimit,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("http api", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("parts ledger listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openBackend selects the record store named by STORE_BACKEND. A configured
// backend that cannot be reached is fatal; there is no silent fallback.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return file.New(cfg.DataDir)
	case config.BackendMemory:
		return memory.NewSeeded(), nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		return pgstore.New(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required for the redis backend")
		}
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return rs, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return fmt.Errorf("ADMIN_USERNAME must not be empty")
	}
	if err := validatePasswordStrength(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	if cfg.ViewerUsername != "" {
		if err := validatePasswordStrength(cfg.ViewerPassword); err != nil {
			return fmt.Errorf("VIEWER_PASSWORD is too weak: %w", err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, a single repeated
// character and a handful of well-known choices. Bcrypt hashes pass as given.
func validatePasswordStrength(password string) error {
	if strings.HasPrefix(password, "$2") {
		return nil
	}
	if len(password) < 10 {
		return fmt.Errorf("at least 10 characters required")
	}
	known := map[string]bool{
		"password123": true, "admin12345": true, "1234567890": true,
		"qwertyuiop": true, "changeme123": true, "letmein1234": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}
	return nil
}
