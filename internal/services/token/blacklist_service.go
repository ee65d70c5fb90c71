package token

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

// BlacklistService is the bearer-token revocation list. Entries are keyed by
// the raw token string and expire together with the token itself, so Redis
// garbage-collects them and the denylist never grows past the set of
// still-valid tokens.
type BlacklistService struct {
	RDB *redis.Client
}

func NewBlacklistService(rdb *redis.Client) *BlacklistService {
	return &BlacklistService{RDB: rdb}
}

// Revoke adds the token to the denylist until expiresAt. Tokens that are
// already past expiry need no entry.
func (s *BlacklistService) Revoke(ctx context.Context, tokenStr string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.RDB.Set(ctx, keyPrefix+tokenStr, "1", ttl).Err()
}

// IsRevoked reports whether the token is on the denylist.
func (s *BlacklistService) IsRevoked(ctx context.Context, tokenStr string) (bool, error) {
	err := s.RDB.Get(ctx, keyPrefix+tokenStr).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
