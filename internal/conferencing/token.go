package conferencing

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// TokenCache holds provider access tokens per provider account. Concurrent
// refreshes of the same account share one upstream request.
type TokenCache struct {
	tokens       *expirable.LRU[string, string]
	group        singleflight.Group
	fetchTimeout time.Duration
}

// NewTokenCache bounds each shared refresh by fetchTimeout.
func NewTokenCache(size int, ttl, fetchTimeout time.Duration) *TokenCache {
	return &TokenCache{
		tokens:       expirable.NewLRU[string, string](size, nil, ttl),
		fetchTimeout: fetchTimeout,
	}
}

func (c *TokenCache) Get(key string) (string, bool) {
	return c.tokens.Get(key)
}

func (c *TokenCache) Forget(key string) {
	c.tokens.Remove(key)
}

// Token returns the cached token for key, or calls fetch and caches the result.
// force skips the cached value.
func (c *TokenCache) Token(ctx context.Context, key string, force bool, fetch func(ctx context.Context) (string, error)) (string, error) {
	if !force {
		if token, ok := c.tokens.Get(key); ok {
			return token, nil
		}
	}

	// The shared refresh is detached from the caller that started it, so one
	// caller giving up does not fail the others waiting on the same key.
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithoutCancel(ctx), context.CancelFunc(func() {})
		if c.fetchTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.fetchTimeout)
		}
		defer cancel()

		token, err := fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		c.tokens.Add(key, token)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
