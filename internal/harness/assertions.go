package harness

import (
	"fmt"
	"os"
	"strings"

	"github.com/roach88/incr/internal/changes"
)

// check returns one message per unmet expectation of a step.
func (h *Harness) check(trace StepTrace, want *Expect) []string {
	var errs []string
	if want.Outcome != "" && trace.Outcome != want.Outcome {
		errs = append(errs, fmt.Sprintf("outcome: expected %s, got %s", want.Outcome, trace.Outcome))
	}
	if want.Incremental != nil && trace.Incremental != *want.Incremental {
		errs = append(errs, fmt.Sprintf("incremental: expected %t, got %t", *want.Incremental, trace.Incremental))
	}
	if want.Reasons != nil {
		errs = append(errs, checkStrings("reasons", trace.Reasons, want.Reasons)...)
	}
	if want.Changes != nil {
		errs = append(errs, checkChanges(trace.Changes, want.Changes)...)
	}
	if want.NoChanges && len(trace.Changes) > 0 {
		errs = append(errs, fmt.Sprintf("changes: expected none, got %d", len(trace.Changes)))
	}
	for rel, content := range want.Files {
		data, err := os.ReadFile(h.files.Resolve(rel))
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("file %s: %v", rel, err))
		case string(data) != content:
			errs = append(errs, fmt.Sprintf("file %s: expected %q, got %q", rel, content, data))
		}
	}
	for _, rel := range want.Absent {
		if _, err := os.Stat(h.files.Resolve(rel)); err == nil {
			errs = append(errs, fmt.Sprintf("file %s: expected absent", rel))
		}
	}
	switch {
	case want.Error != "" && trace.Error == "":
		errs = append(errs, fmt.Sprintf("error: expected %q, got none", want.Error))
	case want.Error != "" && !strings.Contains(trace.Error, want.Error):
		errs = append(errs, fmt.Sprintf("error: expected %q in %q", want.Error, trace.Error))
	case want.Error == "" && trace.Error != "" && want.Outcome != FailedOutcome:
		errs = append(errs, fmt.Sprintf("unexpected error: %s", trace.Error))
	}
	return errs
}

// checkChanges compares change records in order.
func checkChanges(got []changes.FileChange, want []ExpectedChange) []string {
	var errs []string
	if len(got) != len(want) {
		errs = append(errs, fmt.Sprintf("changes: expected %d, got %d (%s)", len(want), len(got), formatChanges(got)))
	}
	for i := 0; i < len(got) && i < len(want); i++ {
		kind, _ := parseKind(want[i].Kind)
		g := got[i]
		if g.Property != want[i].Property || g.Path != want[i].Path || g.Kind != kind {
			errs = append(errs, fmt.Sprintf("changes[%d]: expected %s %s %s, got %s %s %s",
				i, want[i].Property, want[i].Path, want[i].Kind, g.Property, g.Path, g.Kind))
		}
	}
	return errs
}

func checkStrings(what string, got, want []string) []string {
	if len(got) != len(want) {
		return []string{fmt.Sprintf("%s: expected %q, got %q", what, want, got)}
	}
	var errs []string
	for i := range want {
		if got[i] != want[i] {
			errs = append(errs, fmt.Sprintf("%s[%d]: expected %q, got %q", what, i, want[i], got[i]))
		}
	}
	return errs
}

func formatChanges(cs []changes.FileChange) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s %s %s", c.Property, c.Path, c.Kind)
	}
	return strings.Join(parts, ", ")
}
