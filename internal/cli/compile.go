package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberfx/graphc/internal/asset"
	"github.com/emberfx/graphc/internal/cache"
	"github.com/emberfx/graphc/internal/compiler"
	"github.com/emberfx/graphc/internal/env"
	"github.com/emberfx/graphc/internal/graph"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Graph     string // restrict to one graph by name
	Constants string // system-constant registry YAML
	CacheDB   string // artifact cache path; empty disables caching
}

// CallSiteReport is the per-call-site slice of a compile summary.
type CallSiteReport struct {
	Call        string                `json:"call"`
	Callee      string                `json:"callee"`
	Emitted     bool                  `json:"emitted"`
	Hidden      []string              `json:"hidden,omitempty"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics,omitempty"`
}

// GraphReport summarizes one compiled graph.
type GraphReport struct {
	Graph     string            `json:"graph"`
	Identity  string            `json:"identity"`
	CallSites []CallSiteReport  `json:"call_sites"`
	CacheKeys map[string]string `json:"cache_keys,omitempty"` // usage -> key
	CacheHits map[string]bool   `json:"cache_hits,omitempty"` // usage -> artifact reused
}

// CompileSummary is the JSON payload of a compile run.
type CompileSummary struct {
	Graphs []GraphReport `json:"graphs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <assets-dir>",
		Short: "Compile the call sites of loaded graph assets",
		Long: `Compile every call site of the loaded graphs: resolve parameter
bindings, apply static-switch constants, and report diagnostics.

With --cache, aggregated dependency hashes key an artifact cache and
compile traces are stored and reused.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "compile only the named graph")
	cmd.Flags().StringVar(&opts.Constants, "constants", "", "system-constant registry YAML (defaults to the built-in set)")
	cmd.Flags().StringVar(&opts.CacheDB, "cache", "", "artifact cache database path")

	return cmd
}

func runCompile(opts *CompileOptions, assetsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, loadErrs := asset.LoadDir(assetsDir)
	if res == nil {
		return outputLoadErrors(formatter, loadErrs)
	}
	if len(loadErrs) > 0 {
		return outputLoadErrors(formatter, loadErrs)
	}
	formatter.VerboseLog("Loaded %d graph(s), %d signature(s) from %s",
		len(res.Graphs), len(res.Signatures), assetsDir)

	constants, err := loadConstants(opts.Constants)
	if err != nil {
		_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading constants", err)
	}

	var store *cache.Store
	if opts.CacheDB != "" {
		store, err = cache.Open(opts.CacheDB)
		if err != nil {
			_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening artifact cache", err)
		}
		defer store.Close()
	}

	comp := compiler.New(newLogger(opts.RootOptions), constants)

	summary := &CompileSummary{}
	failed := false
	for _, g := range res.Graphs {
		if opts.Graph != "" && !strings.EqualFold(g.Name, opts.Graph) {
			continue
		}
		report, traces, err := compileGraph(comp, g, formatter)
		if err != nil {
			_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "compiling "+g.Name, err)
		}
		for _, cs := range report.CallSites {
			for _, d := range cs.Diagnostics {
				if d.Severity == compiler.SeverityError {
					failed = true
				}
			}
		}
		if store != nil {
			if err := consultCache(cmd.Context(), store, g, traces, report); err != nil {
				_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "artifact cache", err)
			}
		}
		summary.Graphs = append(summary.Graphs, *report)
	}

	if opts.Graph != "" && len(summary.Graphs) == 0 {
		msg := fmt.Sprintf("no graph named %q in %s", opts.Graph, assetsDir)
		_ = formatter.Error(asset.ErrGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	if err := outputCompileSummary(formatter, summary); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, "compilation reported errors")
	}
	return nil
}

// compileGraph compiles every call site of one graph and returns the
// report plus the per-usage artifact bytes (the joined compile traces).
func compileGraph(comp *compiler.Compiler, g *graph.Graph, formatter *OutputFormatter) (*GraphReport, []byte, error) {
	report := &GraphReport{Graph: g.Name, Identity: g.Identity}
	var trace []string
	for _, n := range g.CallSites() {
		tr := compiler.NewTraceTranslator(g)
		result, err := comp.CompileCallSite(tr, g, n.ID)
		if err != nil {
			return nil, nil, err
		}
		cs := CallSiteReport{
			Call:        n.Call.DisplayName,
			Emitted:     result.Emitted(),
			Diagnostics: result.Diags,
		}
		if cg := graph.CalledGraph(n.Call.Callable); cg != nil {
			cs.Callee = cg.Name
		} else if sig, ok := n.Call.Callable.(*graph.Signature); ok {
			cs.Callee = sig.Name
		}
		for name := range result.Hidden {
			cs.Hidden = append(cs.Hidden, name)
		}
		sort.Strings(cs.Hidden)
		report.CallSites = append(report.CallSites, cs)

		for _, line := range tr.Trace {
			formatter.VerboseLog("  [%s] %s", n.Call.DisplayName, line)
		}
		trace = append(trace, tr.Trace...)
	}
	return report, []byte(strings.Join(trace, "\n")), nil
}

// consultCache computes the cache key for every usage the graph
// supports, reuses stored artifacts on hit, and stores the fresh trace
// on miss.
func consultCache(ctx context.Context, store *cache.Store, g *graph.Graph, artifact []byte, report *GraphReport) error {
	report.CacheKeys = map[string]string{}
	report.CacheHits = map[string]bool{}
	for _, usage := range g.SupportedUsages() {
		deps := cache.Aggregate(g, usage)
		key := cache.Key(deps)
		report.CacheKeys[usage.String()] = string(key)

		_, hit, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		report.CacheHits[usage.String()] = hit
		if !hit {
			if err := store.Put(ctx, key, g.Identity, usage, artifact); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadConstants(path string) (*env.Registry, error) {
	if path == "" {
		return env.Default(), nil
	}
	return env.LoadYAML(path)
}

// outputCompileSummary renders the summary in the configured format.
func outputCompileSummary(formatter *OutputFormatter, summary *CompileSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	for _, g := range summary.Graphs {
		emitted := 0
		for _, cs := range g.CallSites {
			if cs.Emitted {
				emitted++
			}
		}
		fmt.Fprintf(formatter.Writer, "%s (%s): %d/%d call site(s) compiled\n",
			g.Graph, g.Identity, emitted, len(g.CallSites))
		for _, cs := range g.CallSites {
			for _, d := range cs.Diagnostics {
				fmt.Fprintf(formatter.Writer, "  %s\n", d.Error())
			}
		}
		usages := make([]string, 0, len(g.CacheKeys))
		for usage := range g.CacheKeys {
			usages = append(usages, usage)
		}
		sort.Strings(usages)
		for _, usage := range usages {
			state := "miss"
			if g.CacheHits[usage] {
				state = "hit"
			}
			fmt.Fprintf(formatter.Writer, "  cache %s: %s (%s)\n", usage, g.CacheKeys[usage], state)
		}
	}
	return nil
}

// outputLoadErrors reports asset-load failures and maps them to a
// command-level exit code.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	for _, err := range errs {
		var ce *asset.CompileError
		if errors.As(err, &ce) {
			_ = formatter.Error(ce.Code, ce.Message, ce.Field)
		} else {
			_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("%d asset error(s)", len(errs)))
}
