package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botadmin/internal/api"
	"botadmin/internal/config"
	"botadmin/internal/model"
	"botadmin/internal/repository"
	"botadmin/internal/service"
	"botadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
		if cfg.Auth.SigningKey == "" {
			return errors.New("auth.signing_key must be set in prod")
		}
	}
	if cfg.Auth.SigningKey == "" {
		logger.Warn("auth.signing_key is empty, using a development key")
		cfg.Auth.SigningKey = "botadmin-dev-signing-key"
	}

	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	admins, err := initAdmins(cfg.MySQL)
	if err != nil {
		return err
	}

	authSvc, err := service.NewAuthService(admins, rdb, service.AuthConfig{
		SigningKey:      []byte(cfg.Auth.SigningKey),
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = authSvc.EnsureAdmin(bootCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	bootCancel()
	if err != nil {
		return err
	}

	r := api.RegisterRoutes(
		api.NewAuthHandler(authSvc),
		api.NewHealthHandler(authSvc),
		authSvc,
		rdb,
		api.RouterConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			LoginPerSecond: cfg.RateLimit.LoginPerSecond,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	}
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// initAdmins opens MySQL when a DSN is configured and falls back to an
// in-memory account table otherwise.
func initAdmins(cfg config.MySQLConfig) (repository.AdminRepository, error) {
	if cfg.DSN == "" {
		logger.Warn("mysql.dsn is empty, admin accounts are kept in memory")
		return repository.NewMemoryAdminRepository(), nil
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	if err := db.AutoMigrate(&model.AdminUser{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repository.NewAdminUserRepository(db), nil
}
