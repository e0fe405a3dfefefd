package app

import (
	"context"
	"fmt"
	"io"

	"github.com/MrSnakeDoc/guide/internal/config"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/redis"
	"github.com/MrSnakeDoc/guide/internal/store"
	"github.com/MrSnakeDoc/guide/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/guide/internal/store/redis"
	"github.com/MrSnakeDoc/guide/internal/store/sqlite"
)

// durable is a store backend the /infra endpoint can probe.
type durable interface {
	store.Durable
	Ping(ctx context.Context) error
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// openDurable opens the backend named by cfg.DurableBackend. It returns a
// nil durable for BackendNone.
func openDurable(ctx context.Context, cfg *config.Config, log logger.Logger) (durable, io.Closer, error) {
	switch cfg.DurableBackend {
	case config.BackendRedis:
		log.Info("connecting to redis", logger.String("addr", cfg.RedisAddr))
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewDurable(client, cfg.RedisKeyTTL), client, nil

	case config.BackendSQLite:
		d, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		return d, d, nil

	case config.BackendPostgres:
		d, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return d, closerFunc(d.Close), nil

	case config.BackendNone, "":
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.DurableBackend)
	}
}
