package cache

import (
	"context"
	"time"

	"github.com/matzehuels/pyllemi/pkg/observability"
)

// Observed reports hits, misses and writes of an inner cache to the
// registered [observability.CacheHooks] under kind.
func Observed(inner Cache, kind string) Cache {
	return &observed{inner: inner, kind: kind}
}

type observed struct {
	inner Cache
	kind  string
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := o.inner.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, o.kind)
		} else {
			observability.Cache().OnCacheMiss(ctx, o.kind)
		}
	}
	return data, hit, err
}

func (o *observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := o.inner.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, o.kind, len(data))
	}
	return err
}

func (o *observed) Delete(ctx context.Context, key string) error { return o.inner.Delete(ctx, key) }
func (o *observed) Close() error                                 { return o.inner.Close() }
