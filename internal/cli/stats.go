package cli

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/matzehuels/pyllemi/pkg/observability"
)

// stats counts pipeline events for the summary printed after a run. It
// implements the resolve, cache and query hooks of package observability.
type stats struct {
	packages   atomic.Int64
	changed    atomic.Int64
	failed     atomic.Int64
	unresolved atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	queries    atomic.Int64
	queryTime  atomic.Int64 // nanoseconds
}

var (
	_ observability.ResolveHooks = (*stats)(nil)
	_ observability.CacheHooks   = (*stats)(nil)
	_ observability.QueryHooks   = (*stats)(nil)
)

// register installs s as the process-wide hooks.
func (s *stats) register() {
	observability.SetResolveHooks(s)
	observability.SetCacheHooks(s)
	observability.SetQueryHooks(s)
}

func (s *stats) OnPackageStart(context.Context, string) {}

func (s *stats) OnPackageComplete(_ context.Context, _ string, changed bool, _ time.Duration, err error) {
	s.packages.Add(1)
	if err != nil {
		s.failed.Add(1)
	}
	if changed {
		s.changed.Add(1)
	}
}

func (s *stats) OnUnresolved(context.Context, string, string) { s.unresolved.Add(1) }

func (s *stats) OnCacheHit(context.Context, string)      { s.hits.Add(1) }
func (s *stats) OnCacheMiss(context.Context, string)     { s.misses.Add(1) }
func (s *stats) OnCacheSet(context.Context, string, int) {}
func (s *stats) OnQuery(context.Context, string, int)    { s.queries.Add(1) }

func (s *stats) OnQueryComplete(_ context.Context, _ string, d time.Duration, _ error) {
	s.queryTime.Add(int64(d))
}

// reset zeroes the counters between watch iterations.
func (s *stats) reset() {
	for _, c := range []*atomic.Int64{
		&s.packages, &s.changed, &s.failed, &s.unresolved,
		&s.hits, &s.misses, &s.queries, &s.queryTime,
	} {
		c.Store(0)
	}
}

// summary renders the counters on one line.
func (s *stats) summary() string {
	parts := []string{
		plural(s.packages.Load(), "package"),
		fmt.Sprintf("%d changed", s.changed.Load()),
	}
	if n := s.failed.Load(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if n := s.unresolved.Load(); n > 0 {
		parts = append(parts, plural(n, "unresolved import"))
	}
	parts = append(parts, fmt.Sprintf("%s (%s)",
		plural(s.queries.Load(), "plz query"),
		time.Duration(s.queryTime.Load()).Round(time.Millisecond)))
	if hits, misses := s.hits.Load(), s.misses.Load(); hits+misses > 0 {
		parts = append(parts, fmt.Sprintf("cache %d/%d", hits, hits+misses))
	}
	return strings.Join(parts, " · ")
}

func plural(n int64, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	if strings.HasSuffix(noun, "y") && !strings.HasSuffix(noun, "ay") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
