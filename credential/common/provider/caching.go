package provider

import (
	"context"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// CachingResolver memoizes successful lookups of another resolver and
// collapses concurrent lookups of the same issuer into one.
type CachingResolver struct {
	next  KeyResolver
	cache gcache.Cache
	group singleflight.Group
}

// CachingOpt configures a CachingResolver.
type CachingOpt func(*cachingOptions)

type cachingOptions struct {
	size int
	ttl  time.Duration
}

// WithCacheSize bounds the number of cached keys.
func WithCacheSize(size int) CachingOpt {
	return func(o *cachingOptions) {
		o.size = size
	}
}

// WithCacheTTL sets how long a resolved key is reused.
func WithCacheTTL(ttl time.Duration) CachingOpt {
	return func(o *cachingOptions) {
		o.ttl = ttl
	}
}

// NewCachingResolver wraps next.
func NewCachingResolver(next KeyResolver, opts ...CachingOpt) *CachingResolver {
	o := &cachingOptions{size: defaultCacheSize, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(o)
	}
	return &CachingResolver{
		next:  next,
		cache: gcache.New(o.size).LRU().Expiration(o.ttl).Build(),
	}
}

// ResolveKey implements KeyResolver. Failures are not cached.
func (c *CachingResolver) ResolveKey(ctx context.Context, issuer, verificationMethod string) (signature.PublicKey, error) {
	cacheKey := issuer + "\x00" + verificationMethod
	if v, err := c.cache.Get(cacheKey); err == nil {
		return v.(signature.PublicKey), nil
	}

	v, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		key, err := c.next.ResolveKey(ctx, issuer, verificationMethod)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(cacheKey, key); err != nil {
			logger.Warnf("failed to cache key of issuer %s: %v", issuer, err)
		}
		return key, nil
	})
	if err != nil {
		return signature.PublicKey{}, err
	}
	return v.(signature.PublicKey), nil
}

// Purge drops every cached key.
func (c *CachingResolver) Purge() {
	c.cache.Purge()
}
