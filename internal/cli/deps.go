package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberfx/graphc/internal/asset"
	"github.com/emberfx/graphc/internal/cache"
	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// DepsOptions holds flags for the deps command.
type DepsOptions struct {
	*RootOptions
	Graph string
	Usage string
}

// DepEntry is one aggregated dependency in the deps report.
type DepEntry struct {
	Usage    string `json:"usage"`
	Identity string `json:"identity"`
	Hash     string `json:"hash"`
}

// DepsSummary is the JSON payload of a deps run.
type DepsSummary struct {
	Graph    string     `json:"graph"`
	Usage    string     `json:"usage"`
	Deps     []DepEntry `json:"deps"`
	CacheKey string     `json:"cache_key"`
}

// NewDepsCommand creates the deps command.
func NewDepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deps <assets-dir>",
		Short: "Print aggregated dependency hashes and the cache key",
		Long: `Walk the transitive callee set of a graph and print the aggregated
(usage, identity, hash) sequence plus the cache key it folds into.
Diamond dependencies appear once; the order is deterministic.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph to aggregate (required)")
	cmd.Flags().StringVar(&opts.Usage, "usage", "module", "usage kind for the cache key")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func runDeps(opts *DepsOptions, assetsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	usage, err := ir.ParseUsage(opts.Usage)
	if err != nil {
		_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing usage", err)
	}

	res, errs := asset.LoadDir(assetsDir)
	if res == nil || len(errs) > 0 {
		return outputLoadErrors(formatter, errs)
	}

	g := findGraphByName(res, opts.Graph)
	if g == nil {
		msg := fmt.Sprintf("no graph named %q in %s", opts.Graph, assetsDir)
		_ = formatter.Error(asset.ErrGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	deps := cache.Aggregate(g, usage)
	summary := &DepsSummary{
		Graph:    g.Name,
		Usage:    usage.String(),
		CacheKey: string(cache.Key(deps)),
	}
	for _, d := range deps {
		summary.Deps = append(summary.Deps, DepEntry{
			Usage:    d.Usage.String(),
			Identity: d.Identity,
			Hash:     string(d.Hash),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "%s (%s): %d dependency hash(es)\n",
		summary.Graph, summary.Usage, len(summary.Deps))
	for _, d := range summary.Deps {
		fmt.Fprintf(formatter.Writer, "  %-8s %-32s %s\n", d.Usage, d.Identity, d.Hash)
	}
	fmt.Fprintf(formatter.Writer, "cache key: %s\n", summary.CacheKey)
	return nil
}

func findGraphByName(res *asset.LoadResult, name string) *graph.Graph {
	for _, g := range res.Graphs {
		if strings.EqualFold(g.Name, name) {
			return g
		}
	}
	return nil
}
