package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/internal/auth/store/drivers/postgres"
	redisdrv "github.com/aussiebroadwan/farmportal/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/farmportal/internal/auth/store/drivers/sqlite"
	"github.com/redis/go-redis/v9"
)

// OpenStore connects the directory database named by cfg. Migrations are
// not applied.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewStore(ctx, cfg.URL)
	case "sqlite", "":
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.File)
		return sqlite.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenRevocations returns the revocation registry for cfg. The closer
// releases any connection it owns and is never nil.
func OpenRevocations(ctx context.Context, cfg Config, st store.Store, logger *slog.Logger) (store.Revocations, io.Closer, error) {
	switch cfg.Revocation.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		reg := redisdrv.NewRegistry(client)
		if err := reg.Ping(ctx); err != nil {
			_ = reg.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		logger.Info("revocation registry: redis", "addr", cfg.Redis.Addr)
		return reg, reg, nil

	case "none":
		logger.Warn("revocation registry disabled, logout will not invalidate tokens")
		return store.NopRevocations{}, nopCloser{}, nil

	default:
		logger.Info("revocation registry: sql")
		return st.Revocations(), nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
