package deps

import (
	"context"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/imports"
	"github.com/matzehuels/pyllemi/pkg/integrations/plz"
	"github.com/matzehuels/pyllemi/pkg/observability"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// Config holds the read-only inputs shared by every resolution. It is
// built once per run.
type Config struct {
	FS         fs.FS             // repository contents, rooted at the repo root
	ModuleDir  string            // dotted python module dir, e.g. "third_party.python"
	Stdlib     map[string]bool   // top-level standard library module names
	ThirdParty []string          // targets under the module dir, any valid form
	Known      Known             // overrides from configuration
	Collator   *imports.Collator // import statement extractor
	Enricher   *imports.Enricher // import classifier
	Querier    plz.Querier       // reverse dependency query
}

// Outcome is the result of resolving one target's sources.
type Outcome struct {
	Deps           Set      // canonical targets the sources depend on
	SkippedSources []string // sources that could not be read or parsed
	Unresolved     []string // repository files no target takes as input
}

// Resolver maps Python sources to the targets they depend on. It is safe
// for concurrent use.
type Resolver struct {
	cfg        Config
	opts       Options
	thirdParty Set
	moduleDir  string // slash form of cfg.ModuleDir
}

// NewResolver creates a Resolver. Third-party targets that do not parse,
// such as the hidden rules behind pip_library, are dropped.
func NewResolver(cfg Config, opts Options) *Resolver {
	opts = opts.WithDefaults()
	r := &Resolver{
		cfg:        cfg,
		opts:       opts,
		thirdParty: make(Set, len(cfg.ThirdParty)),
		moduleDir:  strings.ReplaceAll(strings.Trim(cfg.ModuleDir, "."), ".", "/"),
	}
	for _, t := range cfg.ThirdParty {
		c, err := target.Canonical(t)
		if err != nil {
			opts.Logger.Debug("ignoring third-party target", "target", t, "err", err)
			continue
		}
		r.thirdParty.Add(c)
	}
	return r
}

// ResolveDepsForSrcs returns the dependencies of srcs, which are relative
// to the package directory of pkg.
func (r *Resolver) ResolveDepsForSrcs(ctx context.Context, pkg target.Path, srcs []string) (Set, error) {
	out, err := r.Resolve(ctx, pkg, srcs)
	if err != nil {
		return nil, err
	}
	return out.Deps, nil
}

// Resolve is ResolveDepsForSrcs with the full report.
func (r *Resolver) Resolve(ctx context.Context, pkg target.Path, srcs []string) (*Outcome, error) {
	out := &Outcome{Deps: make(Set)}
	if len(srcs) == 0 {
		return out, nil
	}
	logger := r.opts.Logger.With("pkg", pkg.String())

	var (
		mu      sync.Mutex
		queries = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, src := range srcs {
		g.Go(func() error {
			file := path.Join(pkg.Dir, src)
			found, paths, err := r.scan(gctx, logger, file)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("skipping source", "path", file, "err", errors.UserMessage(err))
				out.SkippedSources = append(out.SkippedSources, file)
				return nil
			}
			out.Deps.Union(found)
			for _, p := range paths {
				queries[p] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(queries) > 0 {
		paths := make([]string, 0, len(queries))
		for p := range queries {
			paths = append(paths, p)
		}
		slices.Sort(paths)

		res, err := r.query(ctx, logger, paths)
		if err != nil {
			return nil, err
		}
		for _, t := range res.AllTargets() {
			c, err := target.Canonical(t)
			if err != nil {
				logger.Error("query returned an invalid target", "target", t, "err", err)
				continue
			}
			out.Deps.Add(c)
		}
		if len(res.TargetlessPaths) > 0 {
			logger.Error("could not find targets for imports", "paths", strings.Join(res.TargetlessPaths, ", "))
			for _, p := range res.TargetlessPaths {
				observability.Resolve().OnUnresolved(ctx, pkg.String(), p)
			}
			out.Unresolved = append(out.Unresolved, res.TargetlessPaths...)
		}
	}

	out.Deps.Delete(pkg.Canonicalize())
	slices.Sort(out.SkippedSources)
	slices.Sort(out.Unresolved)
	return out, nil
}

// query sends paths as one batch. If the batch fails every path is retried
// alone; paths that still fail are logged and contribute nothing.
func (r *Resolver) query(ctx context.Context, logger *log.Logger, paths []string) (*plz.QueryResult, error) {
	res, err := r.cfg.Querier.WhatInputs(ctx, paths...)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	merged := &plz.QueryResult{Targets: make(map[string][]string)}
	if len(paths) == 1 {
		logger.Error("query failed", "path", paths[0], "err", err)
		return merged, nil
	}
	logger.Warn("batched query failed, retrying paths one by one", "paths", len(paths), "err", err)
	for _, p := range paths {
		one, err := r.cfg.Querier.WhatInputs(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Error("query failed", "path", p, "err", err)
			continue
		}
		maps.Copy(merged.Targets, one.Targets)
		merged.TargetlessPaths = append(merged.TargetlessPaths, one.TargetlessPaths...)
	}
	return merged, nil
}

// scan parses one source file and sorts its imports into targets that are
// known without a query and repository files that need one.
func (r *Resolver) scan(ctx context.Context, logger *log.Logger, file string) (Set, []string, error) {
	code, err := fs.ReadFile(r.cfg.FS, file)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeSourceRead, err, "read %s", file)
	}
	nodes, err := r.cfg.Collator.Collate(ctx, code, file)
	if err != nil {
		return nil, nil, err
	}

	found := make(Set)
	var paths []string
	for n := range nodes {
		for _, group := range r.cfg.Enricher.Convert(n) {
			for _, imp := range group {
				if p, ok := r.classify(logger, imp, found); ok {
					paths = append(paths, p)
				}
			}
		}
	}
	return found, paths, nil
}

// classify adds the targets imp resolves to without a query to found. When
// imp names a repository file, its path is returned instead.
func (r *Resolver) classify(logger *log.Logger, imp imports.EnrichedImport, found Set) (string, bool) {
	if ts, ok := r.cfg.Known.Lookup(imp.Ref); ok {
		for _, t := range ts {
			found.Add(t.Canonicalize())
		}
		return "", false
	}

	top := imp.TopLevel()
	if r.cfg.Stdlib[top] {
		logger.Info("found import of a standard lib module", "module", top)
		return "", false
	}

	if r.moduleDir != "" {
		if tp := target.New(r.moduleDir, top).Canonicalize(); r.thirdParty.Has(tp) {
			found.Add(tp)
			return "", false
		}
	}

	if p, ok := imp.FilePath(); ok {
		logger.Debug("found import of a custom lib module", "module", imp.Ref)
		return p, true
	}
	logger.Debug("unresolved import", "module", imp.Ref)
	return "", false
}
