// Package app wires configuration, storage and the HTTP server into runnable commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/binding"
	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/db"
	apihttp "github.com/giftar/giftpin/internal/http"
	"github.com/giftar/giftpin/internal/http/api/front"
	"github.com/giftar/giftpin/internal/issuance"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/override"
	"github.com/giftar/giftpin/internal/permissions"
	"github.com/giftar/giftpin/internal/pins"
	"github.com/giftar/giftpin/internal/ratelimit"
	"github.com/giftar/giftpin/internal/security"
	"github.com/giftar/giftpin/internal/storage"
)

const defaultShutdownTimeout = 15 * time.Second

// ErrInvalidOperator indicates a blank operator username.
var ErrInvalidOperator = errors.New("app: operator username is required")

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// CreateOperator creates a super operator, or resets the password of an existing one.
func CreateOperator(ctx context.Context, cfg config.Config, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidOperator
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: operator password: %w", errHash)
	}

	conn, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Operator
		errFind := tx.Where("username = ?", username).First(&existing).Error
		if errFind == nil {
			if errUpdate := tx.Model(&existing).Updates(map[string]any{
				"password":          hash,
				"active":            true,
				"is_super_operator": true,
			}).Error; errUpdate != nil {
				return fmt.Errorf("app: update operator: %w", errUpdate)
			}
			log.Infof("operator %s updated", username)
			return nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("app: load operator: %w", errFind)
		}
		operator := models.Operator{
			Username:        username,
			Password:        hash,
			Active:          true,
			IsSuperOperator: true,
			Permissions:     permissions.EncodePermissions(nil),
		}
		if errCreate := tx.Create(&operator).Error; errCreate != nil {
			return fmt.Errorf("app: create operator: %w", errCreate)
		}
		log.Infof("operator %s created", username)
		return nil
	})
}

// RunServer boots the gift service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config) error {
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}

	conn, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	l, errLedger := ledger.New(conn, cfg.Ledger.NodeID)
	if errLedger != nil {
		return errLedger
	}
	registry := pins.NewRegistry(conn, pins.Options{Length: cfg.Pin.Length, MaxAttempts: cfg.Pin.MaxAttempts})
	guard := binding.NewGuard(conn)
	coordinator := issuance.NewCoordinator(conn, l, registry)
	service := override.NewService(conn, l, guard, registry)

	var limiter *ratelimit.Limiter
	if rdb := openRedis(ctx, cfg.Redis); rdb != nil {
		defer func() { _ = rdb.Close() }()
		limiter = ratelimit.New(rdb, "", cfg.Redis.VerifyLimit, cfg.Redis.VerifyWindow)
	}

	store, errStore := storage.New(ctx, cfg.Storage)
	if errStore != nil {
		return errStore
	}
	if store == nil {
		log.Info("object storage not configured; content uploads disabled")
	}

	if reaper := issuance.NewReaper(l, registry, cfg.Ledger.ReservationTimeout, cfg.Ledger.ReaperInterval); reaper != nil {
		reaper.Start(ctx)
	}

	router := apihttp.NewRouter(apihttp.RouterDeps{
		DB:     conn,
		Server: cfg.Server,
		JWT:    cfg.JWT,
		Front: front.Deps{
			Guard:          guard,
			Coordinator:    coordinator,
			Ledger:         l,
			Limiter:        limiter,
			Store:          store,
			MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		},
		Override: service,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("giftpin listening on %s (db=%s)", cfg.Server.Addr, db.DialectName(conn))
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return fmt.Errorf("app: serve: %w", errServe)
	case <-ctx.Done():
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	log.Info("giftpin stopped")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return db.Open(cfg.DSN, db.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

func closeDatabase(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database")
	}
}

// openRedis connects to redis when configured. An unreachable server disables throttling.
func openRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := rdb.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("redis ping failed; verify throttling disabled")
		_ = rdb.Close()
		return nil
	}
	log.Infof("redis connected at %s", addr)
	return rdb
}
