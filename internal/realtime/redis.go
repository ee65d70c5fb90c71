package realtime

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates the Redis client shared by the token denylist and the
// chat notification pub/sub.
func NewRedis(addr, password string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Info().Str("addr", addr).Msg("redis client created")
	return rdb
}
