package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberfx/graphc/internal/asset"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationSummary is the JSON payload of a validate run.
type ValidationSummary struct {
	Graphs     int      `json:"graphs"`
	Signatures int      `json:"signatures"`
	Errors     []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <assets-dir>",
		Short: "Validate graph assets without compiling",
		Long: `Load and validate graph assets: declaration well-formedness, link
endpoint resolution, unresolved call paths, and composition cycles.
All violations are reported; the first does not mask the rest.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, assetsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, errs := asset.LoadDir(assetsDir)
	if res == nil {
		return outputLoadErrors(formatter, errs)
	}
	errs = append(errs, asset.Validate(res)...)

	summary := &ValidationSummary{
		Graphs:     len(res.Graphs),
		Signatures: len(res.Signatures),
	}
	for _, err := range errs {
		summary.Errors = append(summary.Errors, err.Error())
	}

	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		if len(errs) == 0 {
			fmt.Fprintf(formatter.Writer, "✓ %d graph(s), %d signature(s) valid\n",
				summary.Graphs, summary.Signatures)
		} else {
			for _, msg := range summary.Errors {
				fmt.Fprintln(formatter.Writer, msg)
			}
			fmt.Fprintf(formatter.Writer, "%d error(s) in %d graph(s)\n",
				len(errs), summary.Graphs)
		}
	}

	if len(errs) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
	}
	return nil
}
