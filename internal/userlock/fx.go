package userlock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/groupsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("userlock",
	fx.Provide(NewLocker),
)

// NewLocker picks the strongest lock the deployment supports: redis when
// configured (serializes across replicas), otherwise an in-process mutex.
// Disabled entirely unless USER_LOCK_ENABLED is set.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	if !cfg.UserLockEnabled {
		return NoopLocker{}
	}

	if cfg.RedisAddr == "" {
		log.Named("userlock").Info("using in-process user lock; concurrent replicas are not serialized")
		return NewMutexLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client)
}
