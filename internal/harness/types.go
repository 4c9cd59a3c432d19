package harness

import "github.com/roach88/incr/internal/changes"

// StepTrace is what one step observed.
type StepTrace struct {
	Step        int                  `json:"step"`
	Outcome     string               `json:"outcome"`
	Incremental bool                 `json:"incremental"`
	Reasons     []string             `json:"reasons"`
	Changes     []changes.FileChange `json:"changes"`
	Error       string               `json:"error,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Trace has one entry per step, or a single entry for diff scenarios.
	Trace []StepTrace `json:"trace"`

	// Errors lists the expectation failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError records an expectation failure and fails the result.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
