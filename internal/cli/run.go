package cli

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/incr/internal/engine"
	"github.com/roach88/incr/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	KeepGoing bool
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Units []report.UnitReport `json:"units"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [unit...]",
		Short: "Run units that are out of date",
		Long: `Run the named units, or every unit of the workfile, in workfile order.

Units whose inputs, outputs and implementation match their last successful
run are skipped. Outputs found in the build cache are restored instead of
being rebuilt.

Example:
  incr run
  incr run compile docs --keep-going
  incr run -C ./project --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "run remaining units after a failure")

	return cmd
}

func runUnits(cmd *cobra.Command, opts *RunOptions, names []string) error {
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

	// Interrupts cancel the running unit; queued units are skipped.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.VerboseLog("running %d unit(s) from %s", len(units), a.root)
	session := engine.NewSession(a.exec, engine.WithKeepGoing(opts.KeepGoing))
	for _, u := range units {
		if err := session.Submit(u); err != nil {
			return reportError(out, WrapExitError(ExitCommandError, "failed to queue unit", err))
		}
	}
	session.Close()

	a.logger.Debug("session starting", "units", len(units), "keep_going", opts.KeepGoing)
	results, runErr := session.Run(ctx)

	reports := unitReports(results)
	if err := out.Success(RunOutput{Units: reports}, func(w io.Writer) error {
		return report.WriteRun(w, reports)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return &ExitError{Code: ExitFailure, Message: "run failed", Err: runErr, Silent: true}
	}
	return nil
}

func unitReports(results []*engine.Result) []report.UnitReport {
	reports := make([]report.UnitReport, 0, len(results))
	for _, res := range results {
		reports = append(reports, report.FromResult(res, res.Err))
	}
	return reports
}
