package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lending-engine/internal/scoring"
)

// keyValue is the subset of goredis.Cmdable the token store uses.
type keyValue interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// TokenStore keeps the client token under a single key with no expiry.
type TokenStore struct {
	rdb keyValue
	key string
}

var _ scoring.TokenStore = (*TokenStore)(nil)

func NewTokenStore(rdb keyValue, key string) *TokenStore {
	return &TokenStore{rdb: rdb, key: key}
}

func (s *TokenStore) Load(ctx context.Context) (string, bool, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read client token: %w", err)
	}
	return token, token != "", nil
}

func (s *TokenStore) Save(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to store client token: %w", err)
	}
	return nil
}
