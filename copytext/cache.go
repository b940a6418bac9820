// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package copytext

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL     = 60 * time.Second
	DefaultVersion = "v1"

	loadTimeout = 10 * time.Second

	bundleKey = "bundle"
)

type entry struct {
	bundle    Bundle
	fetchedAt time.Time
}

// Cache is a read-through cache of the copy bundle. Concurrent misses share
// one load.
type Cache struct {
	loader  Loader
	version string
	ttl     time.Duration
	now     func() time.Time
	entries *expirable.LRU[string, entry]
	group   singleflight.Group
}

type CacheOption func(*Cache)

// WithCacheClock overrides the clock used to age entries.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(loader Loader, version string, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if version == "" {
		version = DefaultVersion
	}
	c := &Cache{
		loader:  loader,
		version: version,
		ttl:     ttl,
		now:     time.Now,
		entries: expirable.NewLRU[string, entry](1, nil, ttl),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Version() string {
	return c.version
}

// Get returns the cached bundle, loading it when absent or older than the
// TTL. Load errors are not cached. The load is shared by every concurrent
// caller, so it is not cancelled with ctx.
func (c *Cache) Get(ctx context.Context) (Bundle, error) {
	if e, ok := c.entries.Get(bundleKey); ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.bundle, nil
	}

	v, err, _ := c.group.Do(bundleKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		b, err := c.loader.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(bundleKey, entry{bundle: b, fetchedAt: c.now()})
		slog.Debug("copy bundle loaded", "version", c.version, "keys", len(b))
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Bundle), nil
}

// Invalidate drops the cached bundle.
func (c *Cache) Invalidate() {
	c.entries.Purge()
}
