package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/incr/internal/fingerprint"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario"`
	Trace        []StepTrace `json:"trace"`
}

// toCanonicalMap converts the snapshot for fingerprint.MarshalCanonical,
// which only handles maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Trace))
	for i, st := range s.Trace {
		changeList := make([]any, len(st.Changes))
		for j, c := range st.Changes {
			changeList[j] = map[string]any{
				"property": c.Property,
				"path":     c.Path,
				"kind":     c.Kind.String(),
			}
		}
		step := map[string]any{
			"step":        st.Step,
			"incremental": st.Incremental,
			"reasons":     append([]string{}, st.Reasons...),
			"changes":     changeList,
		}
		if st.Outcome != "" {
			step["outcome"] = st.Outcome
		}
		if st.Error != "" {
			step["error"] = st.Error
		}
		steps[i] = step
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    steps,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return fingerprint.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden runs a scenario in a temporary directory, fails the test
// on unmet expectations and compares the trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
