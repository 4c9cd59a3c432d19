package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ForgetOptions holds flags for the forget command.
type ForgetOptions struct {
	*RootOptions
	All bool
}

// ForgetOutput is the JSON payload of the forget command.
type ForgetOutput struct {
	Removed []string `json:"removed"`
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForgetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forget <unit>... | --all",
		Short: "Delete stored history so units run from scratch",
		Long: `Delete the recorded history of the named units. Their next run is
non-incremental and cannot be skipped.

Example:
  incr forget compile
  incr forget --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All && len(args) > 0 {
				return NewExitError(ExitCommandError, "--all takes no unit names")
			}
			if !opts.All && len(args) == 0 {
				return NewExitError(ExitCommandError, "name at least one unit, or pass --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "forget every unit")

	return cmd
}

func runForget(cmd *cobra.Command, opts *ForgetOptions, names []string) error {
	out := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(cmd, opts.RootOptions, appOptions{})
	if err != nil {
		return reportError(out, err)
	}
	defer a.Close()

	ctx := commandContext(cmd)
	if opts.All {
		records, err := a.store.List(ctx)
		if err != nil {
			return reportError(out, WrapExitError(ExitCommandError, "failed to read history", err))
		}
		for _, r := range records {
			names = append(names, r.Identity)
		}
	}

	removed := []string{}
	for _, name := range names {
		if err := a.store.Remove(ctx, name); err != nil {
			return reportError(out, WrapExitError(ExitCommandError, fmt.Sprintf("failed to forget %s", name), err))
		}
		a.logger.Debug("history removed", "unit", name)
		removed = append(removed, name)
	}

	return out.Success(ForgetOutput{Removed: removed}, func(w io.Writer) error {
		for _, name := range removed {
			if _, err := fmt.Fprintf(w, "forgot %s\n", name); err != nil {
				return err
			}
		}
		return nil
	})
}
