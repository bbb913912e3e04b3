package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyllemi/pkg/graph"
	"github.com/matzehuels/pyllemi/pkg/pipeline"
)

type graphFlags struct {
	output         string
	format         string
	hideThirdParty bool
	rankDir        string
	refresh        bool
	jobs           int
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "graph <build_pkg_dir>...",
		Short: "Emit the resolved dependency graph of BUILD packages",
		Long: `Resolve the given BUILD packages without writing them and emit the graph of
their python targets and the targets they depend on.

The format follows the extension of --output (.json, .dot, .gv or .svg)
unless --format is given. Without --output the graph is written to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "output format: json, dot or svg")
	cmd.Flags().BoolVar(&flags.hideThirdParty, "hide-third-party", false, "leave out third-party targets (dot and svg)")
	cmd.Flags().StringVar(&flags.rankDir, "rankdir", "LR", "graphviz rank direction")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "bypass the query cache")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "packages resolved concurrently (default: number of CPUs)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, args []string, flags graphFlags) error {
	format, err := graphFormat(flags.format, flags.output)
	if err != nil {
		return err
	}

	s, err := c.openSession(ctx, args, flags.refresh)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := s.options(flags.jobs)
	opts.Check = true
	res, err := c.execute(ctx, s, opts)
	if err != nil {
		return err
	}

	g := res.Graph(s.env.ModuleDir)
	if cycle := g.Cycle(); cycle != nil {
		printWarning("Dependency cycle: %s", strings.Join(cycle, " → "))
	}

	data, err := encodeGraph(ctx, g, format, graph.Options{
		HideThirdParty: flags.hideThirdParty,
		RankDir:        flags.rankDir,
	})
	if err != nil {
		return err
	}

	if flags.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(flags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flags.output, err)
	}
	printSuccess("Wrote graph with %s and %s", plural(int64(g.NodeCount()), "target"), plural(int64(g.EdgeCount()), "edge"))
	printFile(flags.output)
	return nil
}

// graphFormat picks the output format from the flag or the file extension.
func graphFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".dot", ".gv":
			format = pipeline.FormatDOT
		case ".svg":
			format = pipeline.FormatSVG
		default:
			format = pipeline.FormatJSON
		}
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		return "", err
	}
	return format, nil
}

func encodeGraph(ctx context.Context, g *graph.Graph, format string, opts graph.Options) ([]byte, error) {
	switch format {
	case pipeline.FormatDOT:
		return []byte(graph.ToDOT(g, opts)), nil
	case pipeline.FormatSVG:
		return graph.RenderSVG(ctx, graph.ToDOT(g, opts))
	default:
		data, err := graph.MarshalGraph(g)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}
