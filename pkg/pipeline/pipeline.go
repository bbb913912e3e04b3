// Package pipeline runs pyllemi end to end over a set of BUILD packages.
//
// This package wires the building blocks together so that the CLI (and the
// watch loop) share one implementation:
//
//  1. [Discover] asks plz and the interpreter about the repository: its
//     root, python module dir, BUILD file names, third-party targets and
//     standard library modules. Configuration adds known dependencies.
//  2. [NewRunner] builds the import collator, enricher and dependency
//     resolver over that environment.
//  3. [Runner.Execute] loads each package, resolves its targets in
//     parallel, writes BUILD files that changed and formats them with
//     `plz fmt`.
//
// # Usage
//
//	env, err := pipeline.Discover(ctx, client, cfg, cache, logger)
//	runner, err := pipeline.NewRunner(env, querier, client, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Dirs: []string{"app", "lib"},
//	})
//	fmt.Println(result.Modified)
//
// With Options.Check set nothing is written and [Result.Modified] lists the
// BUILD files that are out of date.
package pipeline

import (
	"runtime"
	"slices"

	"github.com/matzehuels/pyllemi/pkg/errors"
)

// Output formats for dependency graphs.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

var validFormats = []string{FormatJSON, FormatDOT, FormatSVG}

// ValidateFormat checks a graph output format. Formats are case-sensitive.
func ValidateFormat(format string) error {
	if !slices.Contains(validFormats, format) {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format %q (want one of %v)", format, validFormats)
	}
	return nil
}

// Options configures one run.
type Options struct {
	Dirs  []string // package directories relative to the repository root
	Check bool     // report out-of-date BUILD files without writing them
	Diff  bool     // compute a unified diff for every out-of-date BUILD file
	NoFmt bool     // skip `plz fmt` on written files
	Jobs  int      // packages resolved concurrently (default: GOMAXPROCS)
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// Duplicate directories are dropped.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Dirs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one BUILD package directory is required")
	}
	dirs := make([]string, 0, len(o.Dirs))
	for _, d := range o.Dirs {
		if d == "." {
			d = ""
		}
		if d != "" {
			if err := errors.ValidatePath(d); err != nil {
				return err
			}
		}
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	o.Dirs = dirs
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	return nil
}
