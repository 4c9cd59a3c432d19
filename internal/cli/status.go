package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/incr/internal/report"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Check bool
}

// StatusOutput is the JSON payload of the status command.
type StatusOutput struct {
	Units []report.StatusReport `json:"units"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [unit...]",
		Short: "Show which units are out of date and why",
		Long: `Inspect the named units, or every unit of the workfile, without running
them. Each out-of-date unit is listed with the reasons it would run and
the input changes it would see.

With --check, exit with status 1 when any unit is out of date.

Example:
  incr status
  incr status compile --check`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "fail if any unit is out of date")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions, names []string) error {
	out := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(cmd, opts.RootOptions, appOptions{workfile: true, executor: true})
	if err != nil {
		return reportError(out, err)
	}
	defer a.Close()

	units, err := a.units(names)
	if err != nil {
		return reportError(out, err)
	}

	ctx := commandContext(cmd)
	reports := make([]report.StatusReport, 0, len(units))
	stale := 0
	for _, u := range units {
		in, err := a.exec.Inspect(ctx, u)
		if err != nil {
			return reportError(out, WrapExitError(ExitFailure, fmt.Sprintf("failed to inspect %s", u.DisplayName()), err))
		}
		out.VerboseLog("inspected %s: %d reason(s)", u.DisplayName(), len(in.Reasons))
		r := report.FromInspection(u.Identity(), in)
		if !r.UpToDate {
			stale++
		}
		reports = append(reports, r)
	}

	if err := out.Success(StatusOutput{Units: reports}, func(w io.Writer) error {
		return report.WriteStatus(w, reports)
	}); err != nil {
		return err
	}
	if opts.Check && stale > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d units out of date", stale, len(units)), Silent: true}
	}
	return nil
}
