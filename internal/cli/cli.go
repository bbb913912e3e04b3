package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pyllemi/pkg/buildinfo"
	"github.com/matzehuels/pyllemi/pkg/cache"
	"github.com/matzehuels/pyllemi/pkg/config"
	"github.com/matzehuels/pyllemi/pkg/integrations/plz"
	"github.com/matzehuels/pyllemi/pkg/pipeline"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Exec runs plz and the Python interpreter. Tests replace it.
	Exec plz.Exec

	verbosity int
	stats     stats
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// Without a subcommand it behaves like "resolve".
func (c *CLI) RootCommand() *cobra.Command {
	resolve := c.resolveCommand()

	root := &cobra.Command{
		Use:   "pyllemi [build_pkg_dir...]",
		Short: "Pyllemi keeps the deps of Please python rules in sync with their imports",
		Long: `Pyllemi reads the Python sources of BUILD packages, resolves every import
to the Please target that provides it and rewrites the deps of python_library,
python_binary and python_test rules to match.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return resolve.RunE(cmd, args)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.SetLogLevel(levelForVerbosity(c.verbosity))
			c.stats.register()
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().CountVarP(&c.verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	root.Flags().AddFlagSet(resolve.Flags())

	root.AddCommand(resolve)
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Session - per-invocation wiring
// =============================================================================

// session is everything a command needs to resolve packages in one
// repository.
type session struct {
	cfg     *config.Config
	client  *plz.Client
	cache   cache.Cache
	querier plz.Querier
	env     *pipeline.Env
	runner  *pipeline.Runner
	dirs    []string
	logger  *log.Logger
}

// Close releases the session's cache.
func (s *session) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// openSession locates the repository, loads its configuration, discovers
// its layout through plz and builds a pipeline runner. args are the
// package directories given on the command line.
func (c *CLI) openSession(ctx context.Context, args []string, refresh bool) (*session, error) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	bin := os.Getenv(config.EnvPlz)
	client := plz.NewClient(plz.Options{Binary: bin, Dir: cwd, Exec: c.Exec, Logger: logger})
	root, err := client.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		logger.Debug("loaded config", "file", cfg.Source)
	}
	if c.verbosity == 0 && cfg.LogLevel != "" {
		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warn("ignoring log level", "value", cfg.LogLevel, "err", err)
		} else {
			c.SetLogLevel(level)
		}
	}

	dirs, err := repoRelative(root, cwd, args)
	if err != nil {
		return nil, err
	}

	client = plz.NewClient(plz.Options{Binary: cfg.Plz, Dir: root, Exec: c.Exec, Logger: logger})
	store, err := newCache(ctx, cfg, refresh)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, client: client, cache: store, dirs: dirs, logger: logger}

	if s.env, err = pipeline.Discover(ctx, client, cfg, store, logger); err != nil {
		s.Close()
		return nil, err
	}
	s.querier = plz.NewCachedQuerier(client, store, cache.NewScopedKeyer(nil, cache.RepoScope(s.env.Root))).
		WithStamper(plz.BuildFileStamper(os.DirFS(s.env.Root), s.env.BuildFileNames))
	if err := s.renew(); err != nil {
		s.Close()
		return nil, err
	}
	prog.done("prepared repository " + root)
	return s, nil
}

// renew replaces the runner, dropping what its resolver memoized about
// the files of the repository.
func (s *session) renew() error {
	runner, err := pipeline.NewRunner(s.env, s.querier, s.client, s.logger)
	if err != nil {
		return err
	}
	s.runner = runner
	return nil
}

// options builds pipeline options from the session and the jobs flag.
func (s *session) options(jobs int) pipeline.Options {
	if jobs == 0 {
		jobs = s.cfg.Jobs
	}
	return pipeline.Options{Dirs: s.dirs, Jobs: jobs}
}

// newCache opens the backend selected by cfg. refresh, or the "none"
// backend, disables caching.
func newCache(ctx context.Context, cfg *config.Config, refresh bool) (cache.Cache, error) {
	if refresh {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheMemory:
		return cache.Observed(cache.NewMemoryCache(cache.DefaultMemorySize, cache.TTLQuery), cfg.Cache), nil
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.Observed(rc, cfg.Cache), nil
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return cache.Observed(fc, cfg.Cache), nil
	}
}
