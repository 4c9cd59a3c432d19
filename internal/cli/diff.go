package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/incr/internal/report"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Outputs bool
	Context int
}

// DiffOutput is the JSON payload of the diff command.
type DiffOutput struct {
	Unit       string `json:"unit"`
	Property   string `json:"property"` // "inputs" | "outputs"
	HasHistory bool   `json:"has_history"`
	Diff       string `json:"diff"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <unit>",
		Short: "Diff a unit's stored fingerprints against the workspace",
		Long: `Print a unified diff between the input fingerprints recorded by the
last run of a unit and the current ones. With --outputs, diff the outputs
instead.

Example:
  incr diff compile
  incr diff compile --outputs -U 0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Outputs, "outputs", false, "diff outputs instead of inputs")
	cmd.Flags().IntVarP(&opts.Context, "unified", "U", report.DefaultContext, "lines of context")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *DiffOptions, name string) error {
	out := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(cmd, opts.RootOptions, appOptions{workfile: true, executor: true})
	if err != nil {
		return reportError(out, err)
	}
	defer a.Close()

	units, err := a.units([]string{name})
	if err != nil {
		return reportError(out, err)
	}
	unit := units[0]

	in, err := a.exec.Inspect(commandContext(cmd), unit)
	if err != nil {
		return reportError(out, WrapExitError(ExitFailure, fmt.Sprintf("failed to inspect %s", name), err))
	}

	result := DiffOutput{Unit: unit.Identity(), Property: "inputs", HasHistory: in.HasPrevious}
	if in.HasPrevious {
		previous, current := in.Previous.Inputs, in.Inputs
		if opts.Outputs {
			result.Property = "outputs"
			previous, current = in.Previous.Outputs, in.OutputsBefore
		}
		if result.Diff, err = report.UnifiedDiff(unit.Identity(), previous, current, opts.Context); err != nil {
			return reportError(out, WrapExitError(ExitFailure, "failed to diff", err))
		}
	} else if opts.Outputs {
		result.Property = "outputs"
	}

	return out.Success(result, func(w io.Writer) error {
		switch {
		case !result.HasHistory:
			_, err := fmt.Fprintf(w, "%s has no history\n", result.Unit)
			return err
		case result.Diff == "":
			_, err := fmt.Fprintf(w, "%s: %s unchanged\n", result.Unit, result.Property)
			return err
		}
		_, err := io.WriteString(w, result.Diff)
		return err
	})
}
