package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberfx/graphc/internal/asset"
	"github.com/emberfx/graphc/internal/cache"
)

// CacheOptions holds flags for the cache subcommands.
type CacheOptions struct {
	*RootOptions
	DB string
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the artifact cache",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "artifact cache database path (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newCacheCountCommand(opts))
	cmd.AddCommand(newCacheFlushCommand(opts))
	cmd.AddCommand(newCacheInvalidateCommand(opts))

	return cmd
}

func newCacheCountCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count",
		Short:         "Print the number of cached artifacts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(store *cache.Store, f *OutputFormatter) error {
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				return f.Success(fmt.Sprintf("%d artifact(s)", n))
			})
		},
	}
}

func newCacheFlushCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "flush",
		Short:         "Remove every cached artifact",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(store *cache.Store, f *OutputFormatter) error {
				n, err := store.Flush(cmd.Context())
				if err != nil {
					return err
				}
				return f.Success(fmt.Sprintf("flushed %d artifact(s)", n))
			})
		},
	}
}

func newCacheInvalidateCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "invalidate <identity>",
		Short:         "Drop cached artifacts for one stored identity",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(store *cache.Store, f *OutputFormatter) error {
				n, err := store.Invalidate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return f.Success(fmt.Sprintf("invalidated %d artifact(s) for %s", n, args[0]))
			})
		},
	}
}

// withStore opens the cache, runs fn, and maps failures to command
// errors.
func withStore(opts *CacheOptions, cmd *cobra.Command, fn func(*cache.Store, *OutputFormatter) error) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	store, err := cache.Open(opts.DB)
	if err != nil {
		_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening artifact cache", err)
	}
	defer store.Close()

	if err := fn(store, formatter); err != nil {
		_ = formatter.Error(asset.ErrGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cache operation", err)
	}
	return nil
}
