package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/incr/internal/buildcache"
	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/engine"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
	"github.com/roach88/incr/internal/testutil"
)

// Harness runs the steps of one scenario against a workspace directory.
type Harness struct {
	dir    string
	files  *snapshotter.Fingerprinter
	store  history.Store
	close  func() error
	exec   *engine.Executor
	logger *slog.Logger
}

// Run executes a scenario in dir, which should be empty, and returns the
// result. Expectation failures are reported in the result; the error is
// reserved for problems setting the scenario up.
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	if scenario.Diff != nil {
		return runDiff(scenario.Diff)
	}

	h, err := newHarness(scenario, dir)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	decl := *scenario.Unit
	for i, step := range scenario.Steps {
		if err := h.apply(ctx, decl.Name, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Version != "" {
			decl.Version = step.Version
		}

		unit, err := decl.Build(h.store, h.files)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		res, runErr := h.exec.Execute(ctx, unit)

		trace := StepTrace{Step: i + 1, Reasons: []string{}, Changes: []changes.FileChange{}}
		if res != nil {
			trace.Outcome = string(res.Outcome)
			trace.Incremental = res.Incremental
			if res.Reasons != nil {
				trace.Reasons = res.Reasons
			}
			if res.Changes != nil {
				trace.Changes = res.Changes
			}
		}
		if runErr != nil {
			trace.Outcome = FailedOutcome
			trace.Error = runErr.Error()
		}
		result.Trace = append(result.Trace, trace)

		if step.Expect != nil {
			for _, msg := range h.check(trace, step.Expect) {
				result.AddError(fmt.Sprintf("step %d: %s", i+1, msg))
			}
		}
	}
	return result, nil
}

func newHarness(scenario *Scenario, dir string) (*Harness, error) {
	files, err := snapshotter.New(dir, snapshotter.DefaultHashCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create fingerprinter: %w", err)
	}
	h := &Harness{
		dir:    dir,
		files:  files,
		close:  func() error { return nil },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	switch scenario.History {
	case HistorySQLite:
		dbDir := filepath.Join(dir, ".incr")
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		st, err := history.Open(filepath.Join(dbDir, "history.db"))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		h.store, h.close = st, st.Close
	default:
		h.store = history.NewMemoryStore()
	}

	cfg := engine.Config{
		Files:  files,
		Clock:  testutil.NewDeterministicClock(),
		IDs:    testutil.NewSequentialIDs("inv"),
		Logger: h.logger,
	}
	if scenario.Cache == CacheMemory {
		cfg.Cache = buildcache.NewMemoryCache()
	}
	if h.exec, err = engine.New(cfg); err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

// apply performs a step's workspace and history edits.
func (h *Harness) apply(ctx context.Context, identity string, step Step) error {
	var touched []string
	for _, rel := range step.Remove {
		if err := os.RemoveAll(h.files.Resolve(rel)); err != nil {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
		touched = append(touched, rel)
	}
	for rel, content := range step.Write {
		p := h.files.Resolve(rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		touched = append(touched, rel)
	}
	// Rewrites within one mtime tick keep the same size and time.
	h.files.Invalidate(touched...)

	if step.Forget {
		if err := h.store.Remove(ctx, identity); err != nil {
			return fmt.Errorf("forget %s: %w", identity, err)
		}
	}
	return nil
}

func runDiff(d *DiffCase) (*Result, error) {
	previous, err := snapshotFrom(d.Previous)
	if err != nil {
		return nil, fmt.Errorf("previous: %w", err)
	}
	current, err := snapshotFrom(d.Current)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}

	var fc *changes.FingerprintChanges
	if d.Output {
		fc = changes.NewOutputFileChanges(previous, current, d.IncludeAdded)
	} else {
		fc = changes.NewInputFileChanges(previous, current)
	}
	var container changes.ChangeContainer = fc
	if d.Incremental != nil {
		container = fc.RestrictToNonIncremental(d.Incremental)
	}

	var col changes.Collector
	container.Accept(col.Visit)
	trace := StepTrace{Step: 1, Reasons: []string{}, Changes: col.Changes()}
	for _, c := range trace.Changes {
		trace.Reasons = append(trace.Reasons, c.Message())
	}

	result := NewResult()
	result.Trace = append(result.Trace, trace)
	for _, msg := range checkChanges(trace.Changes, d.Expect) {
		result.AddError("diff: " + msg)
	}
	if d.Reasons != nil {
		for _, msg := range checkStrings("reasons", trace.Reasons, d.Reasons) {
			result.AddError("diff: " + msg)
		}
	}
	return result, nil
}

func snapshotFrom(props map[string]map[string]string) (fingerprint.Snapshot, error) {
	fps := make(map[string]fingerprint.Fingerprint, len(props))
	for name, files := range props {
		sigs := make(map[string]fingerprint.Signature, len(files))
		for p, sig := range files {
			sigs[p] = fingerprint.Signature(sig)
		}
		fp, err := fingerprint.New(sigs)
		if err != nil {
			return fingerprint.Snapshot{}, fmt.Errorf("property %s: %w", name, err)
		}
		fps[name] = fp
	}
	return fingerprint.NewSnapshot(fps), nil
}
