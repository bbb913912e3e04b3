package pipeline

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pyllemi/pkg/cache"
	"github.com/matzehuels/pyllemi/pkg/config"
	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/integrations/plz"
	"github.com/matzehuels/pyllemi/pkg/stdlib"
)

// Env is the read-only description of a repository shared by every
// package resolution of a run.
type Env struct {
	Root           string
	ModuleDir      string // dotted, e.g. "third_party.python"
	BuildFileNames []string
	ThirdParty     []string
	Stdlib         map[string]bool
	Known          deps.Known
	Kinds          []string
}

// Discover builds an Env by querying plz and the Python interpreter. The
// cache, which may be nil, keeps the interpreter's stdlib names between
// runs.
func Discover(ctx context.Context, client *plz.Client, cfg *config.Config, c cache.Cache, logger *log.Logger) (*Env, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	known, err := cfg.Known()
	if err != nil {
		return nil, err
	}

	root, err := client.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}
	client = client.WithDir(root)
	env := &Env{Root: root, Known: known, Kinds: cfg.Kinds}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		moduleDir, err := client.ModuleDir(gctx)
		if err != nil {
			return err
		}
		thirdParty, err := client.ThirdPartyTargets(gctx, moduleDir)
		if err != nil {
			return err
		}
		env.ModuleDir, env.ThirdParty = moduleDir, thirdParty
		return nil
	})
	g.Go(func() error {
		names, err := client.BuildFileNames(gctx)
		env.BuildFileNames = names
		return err
	})
	g.Go(func() error {
		lister := &stdlib.Lister{
			Python: cfg.Python,
			Cache:  c,
			Keyer:  cache.NewScopedKeyer(nil, cache.RepoScope(root)),
			Logger: logger,
		}
		env.Stdlib = lister.Names(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("discovered repository",
		"root", env.Root,
		"moduledir", env.ModuleDir,
		"third_party", len(env.ThirdParty),
		"stdlib", len(env.Stdlib))
	return env, nil
}
