package cli

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyllemi/pkg/pipeline"
)

// ErrOutOfDate is returned by resolve --check when a BUILD file would
// change. main maps it to exit status 2.
var ErrOutOfDate = stderrors.New("BUILD files are out of date")

// resolveFlags holds the flags shared by resolve and watch.
type resolveFlags struct {
	check   bool
	diff    bool
	noFmt   bool
	refresh bool
	jobs    int
}

func (f *resolveFlags) options(s *session) pipeline.Options {
	opts := s.options(f.jobs)
	opts.Check = f.check
	opts.Diff = f.diff
	opts.NoFmt = f.noFmt
	return opts
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve <build_pkg_dir>...",
		Short: "Sync the deps of python rules with their imports",
		Long: `Resolve the imports of every python_library, python_binary and python_test
rule in the given BUILD package directories and rewrite their deps.

Directories may be given relative to the working directory or as absolute
paths, and must lie inside the Please repository. Written BUILD files are
formatted with "plz fmt -w" unless --no-fmt is set.

With --check nothing is written and the exit status is 2 when any BUILD file
is out of date.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args, flags)
		},
	}

	addResolveFlags(cmd, &flags)
	return cmd
}

func addResolveFlags(cmd *cobra.Command, f *resolveFlags) {
	cmd.Flags().BoolVar(&f.check, "check", false, "report out-of-date BUILD files without writing them")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "print a unified diff of every out-of-date BUILD file")
	cmd.Flags().BoolVar(&f.noFmt, "no-fmt", false, "do not run plz fmt on written BUILD files")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass the query cache")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "packages resolved concurrently (default: number of CPUs)")
}

func (c *CLI) runResolve(ctx context.Context, args []string, flags resolveFlags) error {
	s, err := c.openSession(ctx, args, flags.refresh)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := c.execute(ctx, s, flags.options(s))
	if err != nil {
		return err
	}
	c.report(res, flags)
	if flags.check && res.OutOfDate() {
		return ErrOutOfDate
	}
	return nil
}

// execute runs the pipeline, behind a spinner when nothing is logged.
func (c *CLI) execute(ctx context.Context, s *session, opts pipeline.Options) (*pipeline.Result, error) {
	if c.verbosity > 0 {
		return s.runner.Execute(ctx, opts)
	}
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %s...", plural(int64(len(opts.Dirs)), "package")))
	spinner.Start()
	res, err := s.runner.Execute(ctx, opts)
	spinner.Stop()
	return res, err
}

// report prints the outcome of a run.
func (c *CLI) report(res *pipeline.Result, flags resolveFlags) {
	for _, p := range res.Packages {
		for _, src := range p.SkippedSources {
			printWarning("Skipped %s", src)
		}
		for _, path := range p.Unresolved {
			printWarning("No target provides %s", path)
		}
	}

	switch {
	case !res.OutOfDate():
		printSuccess("No BUILD files were modified")
	case flags.check:
		printError("Out-of-date BUILD files: %s", strings.Join(res.Modified, ", "))
		var dirs []string
		for _, p := range res.Packages {
			if p.Changed {
				dirs = append(dirs, cmp.Or(p.Dir, "."))
			}
		}
		printNextStep("Update them with", appName+" "+strings.Join(dirs, " "))
	default:
		printSuccess("Modified BUILD files: %s", strings.Join(res.Modified, ", "))
	}
	if flags.diff {
		for _, p := range res.Packages {
			if p.Diff != "" {
				printDiff(p.Path, p.Diff)
			}
		}
	}
	printStats(c.stats.summary())
}
