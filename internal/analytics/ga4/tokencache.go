package ga4

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenCache holds a token for its lifetime and refreshes it once, however many callers ask
// at the same moment.
type TokenCache struct {
	src    TokenProvider
	leeway time.Duration
	now    func() time.Time

	mu  sync.Mutex
	tok *AccessToken
	sf  singleflight.Group
}

// NewTokenCache wraps src. A token is treated as expired leeway before its real expiry.
func NewTokenCache(src TokenProvider, leeway time.Duration) *TokenCache {
	if leeway == 0 {
		leeway = time.Minute
	}
	return &TokenCache{
		src:    src,
		leeway: leeway,
		now:    time.Now,
	}
}

// Token implements TokenProvider.
func (c *TokenCache) Token(ctx context.Context) (*AccessToken, error) {
	if tok := c.cached(c.leeway); tok != nil {
		return tok, nil
	}
	return c.refresh(ctx, c.leeway)
}

// Warm refreshes the token when it expires within window. Used by the background refresher.
func (c *TokenCache) Warm(ctx context.Context, window time.Duration) error {
	if c.cached(c.leeway+window) != nil {
		return nil
	}
	_, err := c.refresh(ctx, c.leeway+window)
	return err
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.tok = nil
	c.mu.Unlock()
}

func (c *TokenCache) cached(leeway time.Duration) *AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.ValidAt(c.now(), leeway) {
		return c.tok
	}
	return nil
}

func (c *TokenCache) refresh(ctx context.Context, leeway time.Duration) (*AccessToken, error) {
	v, err, _ := c.sf.Do("token", func() (any, error) {
		// another flight may have finished between our check and Do
		if tok := c.cached(leeway); tok != nil {
			return tok, nil
		}
		tok, err := c.src.Token(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tok = tok
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AccessToken), nil
}
