package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const defaultDebounce = 300 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		flags    resolveFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <build_pkg_dir>...",
		Short: "Re-resolve BUILD packages when their sources change",
		Long: `Resolve the given BUILD packages once, then watch them and resolve a package
again whenever one of its Python sources or its BUILD file changes. Bursts of
changes are coalesced into one run per --debounce interval.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args, flags, debounce)
		},
	}

	addResolveFlags(cmd, &flags)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before a changed package is resolved")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, args []string, flags resolveFlags, debounce time.Duration) error {
	logger := loggerFromContext(ctx)

	s, err := c.openSession(ctx, args, flags.refresh)
	if err != nil {
		return err
	}
	defer s.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range s.dirs {
		if err := watchTree(watcher, filepath.Join(s.env.Root, filepath.FromSlash(dir))); err != nil {
			return err
		}
	}

	if err := c.watchRun(ctx, s, flags, s.dirs); err != nil {
		return err
	}
	printInfo("Watching %s for changes", plural(int64(len(s.dirs)), "package"))

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("cannot watch directory", "path", event.Name, "err", err)
					}
				}
			}
			if !s.relevant(event.Name) {
				continue
			}
			dir, ok := owningPackage(s.env.Root, s.dirs, event.Name)
			if !ok {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			pending[dir] = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)

		case <-timer.C:
			dirs := make([]string, 0, len(pending))
			for dir := range pending {
				dirs = append(dirs, dir)
			}
			slices.Sort(dirs)
			clear(pending)
			if err := s.renew(); err != nil {
				return err
			}
			if err := c.watchRun(ctx, s, flags, dirs); err != nil {
				return err
			}
		}
	}
}

// watchRun resolves dirs once. Resolution failures are reported and the
// watch goes on; only cancellation ends it.
func (c *CLI) watchRun(ctx context.Context, s *session, flags resolveFlags, dirs []string) error {
	c.stats.reset()
	opts := flags.options(s)
	opts.Dirs = dirs
	res, err := s.runner.Execute(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		printError("%v", err)
		return nil
	}
	c.report(res, flags)
	return nil
}

// relevant reports whether a change to path can alter a package's deps.
func (s *session) relevant(path string) bool {
	if filepath.Ext(path) == ".py" {
		return true
	}
	return slices.Contains(s.env.BuildFileNames, filepath.Base(path))
}

// owningPackage returns the watched package directory that contains path.
// Nested watched packages win over their parents.
func owningPackage(root string, dirs []string, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	best, found := "", false
	for _, dir := range dirs {
		if dir != "" && rel != dir && !strings.HasPrefix(rel, dir+"/") {
			continue
		}
		if !found || len(dir) > len(best) {
			best, found = dir, true
		}
	}
	return best, found
}

// watchTree adds dir and its subdirectories to the watcher, skipping
// hidden directories and plz-out.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "plz-out") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
