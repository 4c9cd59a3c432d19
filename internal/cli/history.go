package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/report"
)

// HistoryOutput is the JSON payload of the history command.
type HistoryOutput struct {
	Entries []report.HistoryReport `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [unit...]",
		Short: "List the stored execution history",
		Long: `List the last recorded execution of the named units, or of every unit
in the history database. The workfile is not read.

Example:
  incr history
  incr history compile --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runHistory(cmd *cobra.Command, opts *RootOptions, names []string) error {
	out := newFormatter(cmd, opts)

	a, err := openApp(cmd, opts, appOptions{})
	if err != nil {
		return reportError(out, err)
	}
	defer a.Close()

	records, err := a.store.List(commandContext(cmd))
	if err != nil {
		return reportError(out, WrapExitError(ExitCommandError, "failed to read history", err))
	}
	reports := report.FromRecords(filterRecords(records, names))

	return out.Success(HistoryOutput{Entries: reports}, func(w io.Writer) error {
		return report.WriteHistory(w, reports)
	})
}

// filterRecords keeps the records of the named units; no names keeps all.
func filterRecords(records []history.Record, names []string) []history.Record {
	if len(names) == 0 {
		return records
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []history.Record
	for _, r := range records {
		if want[r.Identity] {
			out = append(out, r)
		}
	}
	return out
}
