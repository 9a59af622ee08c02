package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/speaksmart/internal/config"
	"github.com/MrWong99/speaksmart/internal/session"
	"github.com/MrWong99/speaksmart/internal/store"
	"github.com/MrWong99/speaksmart/internal/store/postgres"
	"github.com/MrWong99/speaksmart/internal/store/sqlite"
)

// migrator is implemented by the persistent store backends.
type migrator interface {
	Migrate(ctx context.Context) error
}

// OpenStore connects the configured storage backend and, when migrate is
// true, brings its schema up to date.
func OpenStore(ctx context.Context, cfg config.StorageConfig, migrate bool) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Driver {
	case config.StoragePostgres:
		s, err = postgres.New(ctx, cfg.DSN)
	case config.StorageSQLite:
		if dir := filepath.Dir(cfg.DSN); !strings.HasPrefix(cfg.DSN, "file:") && dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("app: create sqlite dir: %w", mkErr)
			}
		}
		s, err = sqlite.New(cfg.DSN)
	case config.StorageMemory:
		slog.Warn("using in-memory storage, tickets are lost on restart")
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("app: open %s store: %w", cfg.Driver, err)
	}

	if migrate {
		if m, ok := s.(migrator); ok {
			if err := m.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("app: migrate %s store: %w", cfg.Driver, err)
			}
		}
	}
	slog.Info("store opened", "driver", cfg.Driver)
	return s, nil
}

// Sessions is an open session store with an optional health probe and
// closer. Both are nil for the in-memory backend.
type Sessions struct {
	Store session.Store
	Ping  func(ctx context.Context) error
	Close func() error
}

// OpenSessions connects the configured session backend.
func OpenSessions(ctx context.Context, cfg config.SessionsConfig) (*Sessions, error) {
	switch cfg.Backend {
	case config.SessionsMemory, "":
		return &Sessions{Store: session.NewMemoryStore()}, nil
	case config.SessionsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		var opts []session.RedisOption
		if cfg.TTL > 0 {
			opts = append(opts, session.WithTTL(cfg.TTL))
		}
		rs := session.NewRedisStore(client, opts...)
		if err := rs.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("app: connect redis %s: %w", cfg.RedisAddr, err)
		}
		slog.Info("session store opened", "backend", "redis", "addr", cfg.RedisAddr)
		return &Sessions{Store: rs, Ping: rs.Ping, Close: client.Close}, nil
	default:
		return nil, fmt.Errorf("app: unknown session backend %q", cfg.Backend)
	}
}
