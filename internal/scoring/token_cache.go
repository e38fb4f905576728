package scoring

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
)

const syntheticTokenPrefix = "mock_client_token_"

// Registrar is the part of Client the token cache depends on.
type Registrar interface {
	RegisterClient(ctx context.Context, info ClientInfo) (string, error)
}

// TokenStore persists the client token so that it survives restarts or is
// shared between replicas.
type TokenStore interface {
	Load(ctx context.Context) (token string, ok bool, err error)
	Save(ctx context.Context, token string) error
}

// MemoryTokenStore keeps the token for the life of the process only.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != "", nil
}

func (s *MemoryTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// TokenFallback decides what to do when registration fails. It either returns
// a substitute token or an error to surface.
type TokenFallback func(cause error) (string, error)

// SyntheticTokenFallback substitutes a locally generated placeholder token.
// Useful against a sandbox gateway; never in production.
func SyntheticTokenFallback() TokenFallback {
	return func(_ error) (string, error) {
		return SyntheticToken(), nil
	}
}

// StrictTokenFallback surfaces the registration failure.
func StrictTokenFallback() TokenFallback {
	return func(cause error) (string, error) {
		return "", fmt.Errorf("client registration failed: %w", cause)
	}
}

func SyntheticToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return syntheticTokenPrefix + hex.EncodeToString(b)
}

// TokenCache obtains the gateway client credential once per process.
// Concurrent callers wait for the first registration instead of racing it.
type TokenCache struct {
	registrar Registrar
	info      ClientInfo
	store     TokenStore
	fallback  TokenFallback
	logger    *slog.Logger

	mu    sync.Mutex
	token string
}

type TokenCacheOption func(*TokenCache)

func WithTokenStore(store TokenStore) TokenCacheOption {
	return func(c *TokenCache) {
		if store != nil {
			c.store = store
		}
	}
}

func WithTokenFallback(f TokenFallback) TokenCacheOption {
	return func(c *TokenCache) {
		if f != nil {
			c.fallback = f
		}
	}
}

func NewTokenCache(registrar Registrar, info ClientInfo, logger *slog.Logger, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		registrar: registrar,
		info:      info,
		store:     NewMemoryTokenStore(),
		fallback:  StrictTokenFallback(),
		logger:    logger.With("component", "ClientTokenCache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetToken returns the cached token, registering with the gateway on first
// use. A failed attempt leaves the cache empty so the next call retries. Only
// tokens issued by the gateway are written to the store.
func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	token, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load persisted client token", slog.Any("error", err))
	} else if ok {
		c.token = token
		return token, nil
	}

	token, err = c.registrar.RegisterClient(ctx, c.info)
	if err != nil {
		c.logger.WarnContext(ctx, "Client registration failed", slog.Any("error", err))
		token, err = c.fallback(err)
		if err != nil {
			return "", err
		}
		// Substitute tokens live only in this process.
		c.logger.WarnContext(ctx, "Using substitute client token")
		c.token = token
		return token, nil
	}

	c.token = token
	if err := c.store.Save(ctx, token); err != nil {
		c.logger.WarnContext(ctx, "Failed to persist client token", slog.Any("error", err))
	}
	return token, nil
}
