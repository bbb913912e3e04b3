package pipeline

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pyllemi/pkg/buildpkg"
	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/graph"
	"github.com/matzehuels/pyllemi/pkg/imports"
	"github.com/matzehuels/pyllemi/pkg/integrations/plz"
	"github.com/matzehuels/pyllemi/pkg/observability"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// Formatter rewrites BUILD files in the canonical style.
type Formatter interface {
	Fmt(ctx context.Context, paths ...string) error
}

// Runner resolves and rewrites BUILD packages. It holds no per-run state,
// so one Runner can execute many runs, as the watch loop does.
type Runner struct {
	Env      *Env
	Resolver *deps.Resolver
	Fmt      Formatter
	Logger   *log.Logger
}

// NewRunner builds the resolver for env. Queries go through q; f formats
// written files and may be nil when formatting is never wanted.
func NewRunner(env *Env, q plz.Querier, f Formatter, logger *log.Logger) (*Runner, error) {
	if logger == nil {
		logger = log.Default()
	}
	collator, err := imports.NewCollator()
	if err != nil {
		return nil, err
	}
	fsys := os.DirFS(env.Root)
	resolver := deps.NewResolver(deps.Config{
		FS:         fsys,
		ModuleDir:  env.ModuleDir,
		Stdlib:     env.Stdlib,
		ThirdParty: env.ThirdParty,
		Known:      env.Known,
		Collator:   collator,
		Enricher:   imports.NewEnricher(fsys, env.ModuleDir),
		Querier:    q,
	}, deps.Options{Logger: logger})
	return &Runner{Env: env, Resolver: resolver, Fmt: f, Logger: logger}, nil
}

// PackageResult is the outcome for one package.
type PackageResult struct {
	Dir            string
	Path           string // BUILD file, relative to the repository root
	Changed        bool
	Diff           string // set when Options.Diff is true and Changed
	Targets        []*buildpkg.Target
	SkippedSources []string
	Unresolved     []string
	Duration       time.Duration
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Packages []*PackageResult // in Options.Dirs order
	Modified []string         // BUILD files written, or out of date in check mode
	Duration time.Duration
}

// OutOfDate reports whether any package's BUILD file differs from its
// resolved deps.
func (r *Result) OutOfDate() bool { return len(r.Modified) > 0 }

// Graph returns the dependency graph of the resolved targets.
func (r *Result) Graph(moduleDir string) *graph.Graph {
	g := graph.New(strings.ReplaceAll(moduleDir, ".", "/"))
	for _, p := range r.Packages {
		for _, t := range p.Targets {
			id := t.Path.Canonicalize()
			g.AddTarget(id, t.Kind)
			ds := t.Resolved()
			if ds == nil {
				ds = t.Current()
			}
			for _, d := range ds.Sorted() {
				g.AddEdge(id, d)
			}
		}
	}
	return g
}

// Execute runs the pipeline over opts.Dirs.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()
	res := &Result{
		RunID:    uuid.NewString(),
		Packages: make([]*PackageResult, len(opts.Dirs)),
	}
	logger := r.Logger.With("run", res.RunID[:8])
	logger.Debug("resolving imports", "dirs", strings.Join(opts.Dirs, ", "))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, dir := range opts.Dirs {
		g.Go(func() error {
			pr, err := r.resolvePackage(gctx, logger, dir, opts)
			if err != nil {
				return err
			}
			res.Packages[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range res.Packages {
		if p.Changed {
			res.Modified = append(res.Modified, p.Path)
		}
	}

	if len(res.Modified) > 0 && !opts.Check && !opts.NoFmt && r.Fmt != nil {
		if err := r.Fmt.Fmt(ctx, res.Modified...); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	logger.Debug("dependency target resolution finished",
		"dirs", strings.Join(opts.Dirs, ", "),
		"duration", res.Duration)
	return res, nil
}

func (r *Runner) resolvePackage(ctx context.Context, logger *log.Logger, dir string, opts Options) (pr *PackageResult, err error) {
	start := time.Now()
	observability.Resolve().OnPackageStart(ctx, dir)
	defer func() {
		changed := pr != nil && pr.Changed
		observability.Resolve().OnPackageComplete(ctx, dir, changed, time.Since(start), err)
	}()

	pkg, err := buildpkg.Load(r.Env.Root, dir, r.Env.BuildFileNames, r.Env.Kinds)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	pr = &PackageResult{Dir: pkg.Dir(), Path: pkg.Path()}
	err = pkg.ResolveDepsForTargets(ctx, func(ctx context.Context, t target.Path, srcs []string) (deps.Set, error) {
		out, err := r.Resolver.Resolve(ctx, t, srcs)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		pr.SkippedSources = append(pr.SkippedSources, out.SkippedSources...)
		pr.Unresolved = append(pr.Unresolved, out.Unresolved...)
		mu.Unlock()
		return out.Deps, nil
	})
	if err != nil {
		return nil, err
	}
	pr.Targets = pkg.Targets()
	pr.SkippedSources = slices.Compact(sortedCopy(pr.SkippedSources))
	pr.Unresolved = slices.Compact(sortedCopy(pr.Unresolved))
	pr.Changed = pkg.HasUncommittedChanges()

	if pr.Changed && opts.Diff {
		if pr.Diff, err = pkg.Diff(); err != nil {
			return nil, err
		}
	}
	if pr.Changed && !opts.Check {
		if err := pkg.WriteToBuildFile(); err != nil {
			return nil, err
		}
		logger.Info("updated BUILD file", "path", pkg.Path())
	}
	logger.Debug("resolved package", "pkg", dir, "targets", len(pr.Targets), "changed", pr.Changed)
	pr.Duration = time.Since(start)
	return pr, nil
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
