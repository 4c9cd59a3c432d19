// Package report renders executor results, unit status and history for
// humans (text) and machines (JSON).
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/engine"
	"github.com/roach88/incr/internal/history"
)

// UnitReport is the outcome of running one unit.
type UnitReport struct {
	Unit         string               `json:"unit"`
	InvocationID string               `json:"invocation_id,omitempty"`
	Outcome      string               `json:"outcome,omitempty"`
	Incremental  bool                 `json:"incremental"`
	Reasons      []string             `json:"reasons"`
	Changes      []changes.FileChange `json:"changes,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
	Error        string               `json:"error,omitempty"`
}

// FromResult builds a report from an executor result and its error.
func FromResult(res *engine.Result, err error) UnitReport {
	r := UnitReport{Reasons: []string{}}
	if res != nil {
		r.Unit = res.Identity
		r.InvocationID = res.InvocationID
		r.Outcome = string(res.Outcome)
		r.Incremental = res.Incremental
		r.Changes = res.Changes
		r.DurationMS = res.Duration.Milliseconds()
		if res.Reasons != nil {
			r.Reasons = res.Reasons
		}
	}
	if err != nil {
		r.Outcome = "FAILED"
		r.Error = err.Error()
	}
	return r
}

// StatusReport describes a unit that was inspected but not executed.
type StatusReport struct {
	Unit     string   `json:"unit"`
	UpToDate bool     `json:"up_to_date"`
	Reasons  []string `json:"reasons"`
	// Incremental tells whether the next run would see only the changes.
	Incremental bool                 `json:"incremental"`
	Changes     []changes.FileChange `json:"changes,omitempty"`
}

// FromInspection summarizes an inspection.
func FromInspection(unit string, in *engine.Inspection) StatusReport {
	r := StatusReport{
		Unit:     unit,
		UpToDate: in.UpToDate(),
		Reasons:  in.Reasons,
	}
	if r.Reasons == nil {
		r.Reasons = []string{}
	}
	if !r.UpToDate {
		r.Incremental = in.CanExecuteIncrementally()
	}
	if ic := in.InputChanges(); ic != nil {
		var col changes.Collector
		ic.AcceptAll(col.Visit)
		r.Changes = col.Changes()
	}
	return r
}

// HistoryReport is one stored history entry.
type HistoryReport struct {
	Unit               string `json:"unit"`
	InvocationID       string `json:"invocation_id"`
	Seq                int64  `json:"seq"`
	Outcome            string `json:"outcome"`
	Successful         bool   `json:"successful"`
	ImplementationHash string `json:"implementation_hash"`
	InputFiles         int    `json:"input_files"`
	OutputFiles        int    `json:"output_files"`
	InputsHash         string `json:"inputs_hash"`
	OutputsHash        string `json:"outputs_hash"`
	DurationMS         int64  `json:"duration_ms"`
}

// FromRecords converts stored records, keeping their order.
func FromRecords(records []history.Record) []HistoryReport {
	out := make([]HistoryReport, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryReport{
			Unit:               rec.Identity,
			InvocationID:       rec.Entry.InvocationID,
			Seq:                rec.Entry.Seq,
			Outcome:            rec.Entry.Outcome,
			Successful:         rec.Entry.Successful,
			ImplementationHash: rec.Entry.ImplementationHash,
			InputFiles:         rec.Entry.Inputs.FileCount(),
			OutputFiles:        rec.Entry.Outputs.FileCount(),
			InputsHash:         rec.Entry.Inputs.Hash(),
			OutputsHash:        rec.Entry.Outputs.Hash(),
			DurationMS:         rec.Entry.Duration.Milliseconds(),
		})
	}
	return out
}

// WriteRun prints one block per unit followed by a summary line.
func WriteRun(w io.Writer, reports []UnitReport) error {
	counts := make(map[string]int)
	var order []string
	for _, r := range reports {
		line := fmt.Sprintf("%s %s", r.Unit, r.Outcome)
		if r.Outcome != "" && r.Outcome != "UP_TO_DATE" && r.Outcome != "FAILED" {
			line += fmt.Sprintf(" (%d changes, %s)", len(r.Changes), time.Duration(r.DurationMS)*time.Millisecond)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, reason := range r.Reasons {
			if _, err := fmt.Fprintf(w, "  %s\n", reason); err != nil {
				return err
			}
		}
		if r.Error != "" {
			if _, err := fmt.Fprintf(w, "  error: %s\n", r.Error); err != nil {
				return err
			}
		}
		if counts[r.Outcome] == 0 {
			order = append(order, r.Outcome)
		}
		counts[r.Outcome]++
	}

	parts := make([]string, 0, len(order))
	for _, o := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[o], humanOutcome(o)))
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", plural(len(reports), "unit"), strings.Join(parts, ", "))
	return err
}

// WriteStatus prints each unit's state and rebuild reasons.
func WriteStatus(w io.Writer, reports []StatusReport) error {
	for _, r := range reports {
		state := "up-to-date"
		switch {
		case r.UpToDate:
		case r.Incremental:
			state = "out-of-date (incremental)"
		default:
			state = "out-of-date"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", r.Unit, state); err != nil {
			return err
		}
		for _, reason := range r.Reasons {
			if _, err := fmt.Fprintf(w, "  %s\n", reason); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteHistory prints one line per stored entry.
func WriteHistory(w io.Writer, reports []HistoryReport) error {
	for _, r := range reports {
		status := "ok"
		if !r.Successful {
			status = "failed"
		}
		_, err := fmt.Fprintf(w, "%s seq=%d %s %s inputs=%d outputs=%d %s\n",
			r.Unit, r.Seq, r.Outcome, status, r.InputFiles, r.OutputFiles, r.InvocationID)
		if err != nil {
			return err
		}
	}
	return nil
}

func humanOutcome(o string) string {
	return strings.ReplaceAll(strings.ToLower(o), "_", " ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
