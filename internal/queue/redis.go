package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"veritas-backend/internal/config"
)

// RedisOpt derives asynq connection options from the app config, accepting
// either a redis:// URL or a bare host:port.
func RedisOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
