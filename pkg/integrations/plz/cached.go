package plz

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path"

	"github.com/matzehuels/pyllemi/pkg/cache"
)

// Stamper fingerprints the repository state a whatinputs answer for path
// depends on. An answer cached under one stamp is never served under
// another.
type Stamper func(path string) (string, error)

// BuildFileStamper stamps a path with the directory and content hash of the
// BUILD file that owns it: the first of buildFileNames found in the path's
// directory or its closest ancestor. Editing that file, or adding a BUILD
// file closer to the path, changes the stamp.
func BuildFileStamper(fsys fs.FS, buildFileNames []string) Stamper {
	return func(p string) (string, error) {
		for dir := path.Dir(p); ; dir = path.Dir(dir) {
			for _, name := range buildFileNames {
				data, err := fs.ReadFile(fsys, path.Join(dir, name))
				if stderrors.Is(err, fs.ErrNotExist) {
					continue
				}
				if err != nil {
					return "", err
				}
				return dir + "/" + name + "@" + cache.Hash(data)[:16], nil
			}
			if dir == "." || dir == "/" {
				return "-", nil
			}
		}
	}
}

// CachedQuerier answers whatinputs queries from a cache where it can and
// forwards the remaining paths to the inner Querier in one call. Only paths
// with owning targets are cached; a targetless path is asked again next
// time since the user is likely about to add a target for it.
//
// Without a [Stamper] entries are keyed on the path alone and go stale
// when BUILD files move sources between targets; that is only safe for a
// cache that lives for a single run.
type CachedQuerier struct {
	inner Querier
	cache cache.Cache
	keyer cache.Keyer
	stamp Stamper
}

// NewCachedQuerier wraps inner. A nil keyer selects [cache.NewDefaultKeyer].
func NewCachedQuerier(inner Querier, c cache.Cache, keyer cache.Keyer) *CachedQuerier {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &CachedQuerier{inner: inner, cache: c, keyer: keyer}
}

// WithStamper returns a copy of q that keys every entry on stamp as well as
// the path.
func (q *CachedQuerier) WithStamper(stamp Stamper) *CachedQuerier {
	cp := *q
	cp.stamp = stamp
	return &cp
}

// key returns the cache key for p. ok is false when p cannot be stamped;
// such paths bypass the cache.
func (q *CachedQuerier) key(p string) (string, bool) {
	if q.stamp == nil {
		return q.keyer.QueryKey(p), true
	}
	s, err := q.stamp(p)
	if err != nil {
		return "", false
	}
	return q.keyer.QueryKey(p + "#" + s), true
}

// WhatInputs implements Querier.
func (q *CachedQuerier) WhatInputs(ctx context.Context, paths ...string) (*QueryResult, error) {
	res := &QueryResult{Targets: make(map[string][]string)}

	keys := make(map[string]string, len(paths))
	var misses []string
	for _, p := range paths {
		key, ok := q.key(p)
		if !ok {
			misses = append(misses, p)
			continue
		}
		keys[p] = key
		data, hit, err := q.cache.Get(ctx, key)
		if err != nil || !hit {
			misses = append(misses, p)
			continue
		}
		var targets []string
		if json.Unmarshal(data, &targets) != nil || len(targets) == 0 {
			misses = append(misses, p)
			continue
		}
		res.Targets[p] = targets
	}
	if len(misses) == 0 {
		return res, nil
	}

	fresh, err := q.inner.WhatInputs(ctx, misses...)
	if err != nil {
		return nil, err
	}
	for p, targets := range fresh.Targets {
		res.Targets[p] = targets
		key, ok := keys[p]
		if !ok {
			continue
		}
		if data, err := json.Marshal(targets); err == nil {
			_ = q.cache.Set(ctx, key, data, cache.TTLQuery)
		}
	}
	res.TargetlessPaths = append(res.TargetlessPaths, fresh.TargetlessPaths...)
	return res, nil
}

var _ Querier = (*CachedQuerier)(nil)
