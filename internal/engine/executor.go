package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/incr/internal/buildcache"
	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
	"github.com/roach88/incr/internal/work"
)

// DefaultMaxReasons is the number of rebuild reasons reported per unit.
const DefaultMaxReasons = 3

// Config configures an Executor.
type Config struct {
	// Files fingerprints inputs and outputs. Required.
	Files *snapshotter.Fingerprinter

	// Cache is the build cache. Nil disables caching.
	Cache buildcache.Cache

	// Clock stamps history entries. Defaults to a new Clock.
	Clock Sequencer

	// IDs generates invocation IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxReasons caps the rebuild reasons. Defaults to DefaultMaxReasons.
	MaxReasons int
}

// Sequencer hands out history sequence numbers. *Clock implements it.
type Sequencer interface {
	Next() int64
}

// Executor runs units of work incrementally.
//
// A run goes through:
//
//	load history -> snapshot inputs/outputs -> up-to-date check
//	  -> cache load -> execute -> snapshot outputs -> cache store -> store history
//
// Units are executed one at a time; the executor holds no per-unit state
// between calls.
type Executor struct {
	files      *snapshotter.Fingerprinter
	cache      buildcache.Cache
	clock      Sequencer
	ids        IDGenerator
	logger     *slog.Logger
	maxReasons int
}

// New creates an executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Files == nil {
		return nil, fmt.Errorf("executor: fingerprinter is required")
	}
	e := &Executor{
		files:      cfg.Files,
		cache:      cfg.Cache,
		clock:      cfg.Clock,
		ids:        cfg.IDs,
		logger:     cfg.Logger,
		maxReasons: cfg.MaxReasons,
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.ids == nil {
		e.ids = UUIDv7Generator{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.maxReasons <= 0 {
		e.maxReasons = DefaultMaxReasons
	}
	return e, nil
}

// Result describes one executor run.
type Result struct {
	Identity     string
	InvocationID string
	Outcome      work.ExecutionOutcome
	Reasons      []string

	// Incremental is true when the body saw only the changes since the last run.
	Incremental bool

	// Changes are the input changes the body was given.
	Changes []changes.FileChange

	Duration time.Duration
	States   []work.State

	// Err is the error Execute returned with this result, if any.
	Err error
}

// Execute runs one unit. On failure the returned Result is still populated
// with whatever was reached.
func (e *Executor) Execute(ctx context.Context, unit work.UnitOfWork) (*Result, error) {
	lc := work.NewLifecycle(unit.Identity())
	res := &Result{Identity: unit.Identity(), InvocationID: e.ids.Generate()}
	log := e.logger.With("unit", unit.DisplayName(), "invocation", res.InvocationID)

	fail := func(err error) (*Result, error) {
		lc.Fail()
		res.States = lc.Trace()
		res.Err = err
		log.Error("unit failed", "error", err)
		return res, err
	}
	transition := func(to work.State) error {
		if err := lc.Transition(to); err != nil {
			return fmt.Errorf("unit %s: %w", unit.Identity(), err)
		}
		return nil
	}

	if err := transition(work.SnapshottingInputs); err != nil {
		return fail(err)
	}
	in, err := e.Inspect(ctx, unit)
	if err != nil {
		return fail(err)
	}
	res.Reasons = in.Reasons

	if in.UpToDate() {
		res.Outcome = work.UpToDate
		log.Info("unit up-to-date")
		if err := transition(work.Completed); err != nil {
			return fail(err)
		}
		res.States = lc.Trace()
		return res, nil
	}
	for _, reason := range in.Reasons {
		log.Debug("unit out of date", "reason", reason)
	}

	incremental := in.CanExecuteIncrementally()

	key := buildcache.Key(fingerprint.CacheKey(unit.Identity(), in.Implementation, in.Inputs))
	handler := unit.CreateCacheHandler()
	if loaded, err := e.loadFromCache(ctx, unit, in, handler, key, log); err != nil {
		return fail(err)
	} else if loaded != nil {
		if err := e.storeHistory(ctx, unit, res, in, loaded.Outputs, work.FromCache, true, loaded.ExecutionTime); err != nil {
			return fail(err)
		}
		res.Outcome = work.FromCache
		res.Duration = loaded.ExecutionTime
		log.Info("unit loaded from cache", "key", string(key))
		if err := transition(work.Completed); err != nil {
			return fail(err)
		}
		res.States = lc.Trace()
		return res, nil
	} else if e.cacheLoadFailed(unit) {
		incremental = false
	}

	if err := transition(work.Executing); err != nil {
		return fail(err)
	}

	if !incremental && in.HasPrevious {
		if err := e.removeOutputs(in.Previous.Outputs); err != nil {
			return fail(err)
		}
	}

	ic := in.NewInputChanges(incremental)
	res.Incremental = incremental
	res.Changes = ic.AllFileChanges()
	res.Outcome = work.ExecutedNonIncrementally
	if incremental {
		res.Outcome = work.ExecutedIncrementally
	}
	log.Info("executing unit", "incremental", incremental, "changes", len(res.Changes))

	execErr := e.executeBody(ctx, unit, work.ExecutionContext{
		InputChanges:   ic,
		FirstExecution: !in.Usable(),
		InvocationID:   res.InvocationID,
		Logger:         log,
	}, res)
	res.Duration = unit.MarkExecutionTime()

	// Invalidate before snapshotting so that rewritten files are re-hashed.
	if paths, ok := unit.ChangingOutputs(); ok {
		e.files.Invalidate(paths...)
	} else {
		e.files.InvalidateAll()
	}

	if err := transition(work.SnapshottingOutputs); err != nil {
		return fail(err)
	}
	outputs, err := unit.SnapshotAfterOutputsGenerated(ctx)
	if err != nil {
		return fail(newExecutionError(ErrCodeSnapshotFailed, unit.Identity(), "snapshot outputs after execution", err))
	}
	if unit.AllowOverlappingOutputs() {
		var previousOutputs fingerprint.Snapshot
		if in.HasPrevious {
			previousOutputs = in.Previous.Outputs
		}
		outputs = fingerprint.FilterOverlapping(outputs, in.OutputsBefore, previousOutputs)
	}

	if execErr == nil {
		e.storeInCache(ctx, unit, handler, key, outputs, res.Duration, log)
	}

	if err := e.storeHistory(ctx, unit, res, in, outputs, res.Outcome, execErr == nil, res.Duration); err != nil {
		return fail(errors.Join(execErr, err))
	}
	if execErr != nil {
		return fail(execErr)
	}

	if err := transition(work.Completed); err != nil {
		return fail(err)
	}
	res.States = lc.Trace()
	log.Info("unit executed", "outcome", string(res.Outcome), "duration", res.Duration)
	return res, nil
}

func (e *Executor) executeBody(ctx context.Context, unit work.UnitOfWork, ec work.ExecutionContext, res *Result) error {
	runCtx := ctx
	if d, ok := unit.Timeout(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	result, err := unit.Execute(runCtx, ec)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return newExecutionError(ErrCodeTimeout, unit.Identity(), "timed out", err)
		}
		if changes.IsContractViolation(err) {
			return err
		}
		return newExecutionError(ErrCodeExecutionFailed, unit.Identity(), "execution failed", err)
	}
	if result == work.DidNoWork {
		res.Outcome = work.UpToDate
	}
	return nil
}

// cacheLoadFailed reports whether a failed cache load removed the outputs.
func (e *Executor) cacheLoadFailed(unit work.UnitOfWork) bool {
	v, ok := unit.(interface{ OutputsValid() bool })
	return ok && !v.OutputsValid()
}

// loadFromCache returns the restored entry, or nil on a miss, when the
// cache is disabled or when restoring failed. The unit's current outputs
// are deleted before the entry is restored, so only the cached files
// remain. A failed restore removes the partially written outputs and
// notifies the unit.
func (e *Executor) loadFromCache(ctx context.Context, unit work.UnitOfWork, in *Inspection, handler work.CacheHandler, key buildcache.Key, log *slog.Logger) (*buildcache.Entry, error) {
	if e.cache == nil {
		return nil, nil
	}
	if ok, reason := handler.CanLoad(); !ok {
		log.Debug("cache load skipped", "reason", reason)
		return nil, nil
	}

	entry, ok, err := e.cache.Load(ctx, key)
	if err != nil {
		log.Warn("cache load failed", "key", string(key), "error", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	// With overlapping outputs only the files this unit produced last time
	// are its own.
	stale := in.OutputsBefore
	if unit.AllowOverlappingOutputs() {
		stale = fingerprint.EmptySnapshot()
		if in.HasPrevious {
			stale = in.Previous.Outputs
		}
	}
	if err := e.removeOutputs(stale); err != nil {
		return nil, fmt.Errorf("remove outputs before cache load: %w", err)
	}

	if err := buildcache.Restore(e.files, entry); err != nil {
		log.Warn("failed to restore outputs from cache, executing", "key", string(key), "error", err)
		if rmErr := e.removeEntryFiles(entry); rmErr != nil {
			return nil, fmt.Errorf("remove outputs after failed cache load: %w", rmErr)
		}
		e.files.InvalidateAll()
		unit.OutputsRemovedAfterFailureToLoadFromCache()
		return nil, nil
	}
	if paths, ok := unit.ChangingOutputs(); ok {
		e.files.Invalidate(paths...)
	} else {
		e.files.InvalidateAll()
	}
	return entry, nil
}

func (e *Executor) storeInCache(ctx context.Context, unit work.UnitOfWork, handler work.CacheHandler, key buildcache.Key, outputs fingerprint.Snapshot, took time.Duration, log *slog.Logger) {
	if e.cache == nil {
		return
	}
	if ok, reason := handler.CanStore(); !ok {
		log.Debug("cache store skipped", "reason", reason)
		return
	}
	entry, err := buildcache.Capture(e.files, key, unit.Identity(), outputs, took)
	if err == nil {
		err = e.cache.Store(ctx, entry)
	}
	if err != nil {
		log.Warn("cache store failed", "key", string(key), "error", err)
	}
}

func (e *Executor) storeHistory(ctx context.Context, unit work.UnitOfWork, res *Result, in *Inspection, outputs fingerprint.Snapshot, outcome work.ExecutionOutcome, successful bool, took time.Duration) error {
	err := unit.ExecutionHistoryStore().Store(ctx, unit.Identity(), history.Entry{
		InvocationID:       res.InvocationID,
		Seq:                e.clock.Next(),
		ImplementationHash: in.Implementation,
		Inputs:             in.Inputs,
		Outputs:            outputs,
		Outcome:            string(outcome),
		Successful:         successful,
		Duration:           took,
	})
	if err != nil {
		return newExecutionError(ErrCodeHistoryFailed, unit.Identity(), "store history", err)
	}
	return nil
}

// removeOutputs deletes every file of an output snapshot: the previous
// run's outputs before a non-incremental execution, or the current ones
// before a cache restore.
func (e *Executor) removeOutputs(outputs fingerprint.Snapshot) error {
	for _, name := range outputs.Names() {
		fp, _ := outputs.Get(name)
		for _, p := range fp.Paths() {
			if err := removeFile(e.files.Resolve(p)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) removeEntryFiles(entry *buildcache.Entry) error {
	for _, f := range entry.Files {
		if err := removeFile(e.files.Resolve(f.Path)); err != nil {
			return err
		}
	}
	return nil
}

func removeFile(p string) error {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
