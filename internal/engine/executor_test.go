package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/buildcache"
	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/testutil"
	"github.com/roach88/incr/internal/work"
)

// testUnit is a unit whose body is a Go function. A fresh value is created
// for every execution, as the executor expects.
type testUnit struct {
	work.Base
	impl     string
	changing []string
	body     func(ctx context.Context, ec work.ExecutionContext) (work.WorkResult, error)

	executed       bool
	lastContext    work.ExecutionContext
	removedOutputs bool
}

func (u *testUnit) Execute(ctx context.Context, ec work.ExecutionContext) (work.WorkResult, error) {
	u.executed = true
	u.lastContext = ec
	if u.body == nil {
		return work.DidWork, nil
	}
	return u.body(ctx, ec)
}

func (u *testUnit) ChangingOutputs() ([]string, bool) {
	return u.changing, u.changing != nil
}

func (u *testUnit) ImplementationHash() (string, error) {
	return u.impl, nil
}

func (u *testUnit) OutputsRemovedAfterFailureToLoadFromCache() {
	u.removedOutputs = true
	u.Base.OutputsRemovedAfterFailureToLoadFromCache()
}

type fixture struct {
	t     *testing.T
	ws    *testutil.Workspace
	store *history.MemoryStore
	cache *buildcache.MemoryCache
	exec  *Executor
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ws:    testutil.NewWorkspace(t),
		store: history.NewMemoryStore(),
		clock: testutil.NewDeterministicClock(),
	}
	cfg := Config{Files: f.ws.Files, Clock: f.clock, IDs: testutil.NewSequentialIDs("inv")}
	if withCache {
		f.cache = buildcache.NewMemoryCache()
		cfg.Cache = f.cache
	}
	exec, err := New(cfg)
	require.NoError(t, err)
	f.exec = exec
	return f
}

// copyUnit copies src/ into out/, applying only the reported changes.
func (f *fixture) copyUnit(spec work.Spec) *testUnit {
	f.t.Helper()
	if spec.Name == "" {
		spec.Name = ":copy"
	}
	if spec.Inputs == nil {
		spec.Inputs = []work.InputProperty{{Name: "src", Roots: work.FileRoots{"src"}, Incremental: true}}
	}
	if spec.Outputs == nil {
		spec.Outputs = []work.OutputProperty{{Name: "out", Kind: work.DirectoryTree, Roots: work.FileRoots{"out"}}}
	}
	base, err := work.NewBase(spec, f.store, f.ws.Files)
	require.NoError(f.t, err)
	u := &testUnit{Base: base, impl: "v1", changing: []string{"out"}}
	u.body = func(ctx context.Context, ec work.ExecutionContext) (work.WorkResult, error) {
		for _, c := range ec.InputChanges.AllFileChanges() {
			if c.Property != "src" {
				continue
			}
			dst := "out/" + c.Path[len("src/"):]
			if c.Kind == changes.Removed {
				f.ws.Remove(dst)
				continue
			}
			f.ws.Write(dst, f.ws.Read(c.Path))
		}
		return work.DidWork, nil
	}
	return u
}

func (f *fixture) run(u work.UnitOfWork) *Result {
	f.t.Helper()
	res, err := f.exec.Execute(context.Background(), u)
	require.NoError(f.t, err)
	return res
}

func TestExecute_FirstRunIsNonIncremental(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.ws.Write("src/b.txt", "b")

	u := f.copyUnit(work.Spec{})
	res := f.run(u)

	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, []string{ReasonNoHistory}, res.Reasons)
	assert.Equal(t, "inv-1", res.InvocationID)
	assert.True(t, u.lastContext.FirstExecution)
	assert.False(t, u.lastContext.InputChanges.IsIncremental())
	require.Len(t, res.Changes, 2)
	assert.Equal(t, changes.Added, res.Changes[0].Kind)
	assert.Equal(t, []work.State{work.Pending, work.SnapshottingInputs, work.Executing, work.SnapshottingOutputs, work.Completed}, res.States)
	assert.Equal(t, "b", f.ws.Read("out/b.txt"))

	entry, ok, err := f.store.Load(context.Background(), ":copy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.Successful)
	assert.Equal(t, int64(1), entry.Seq)
	assert.Equal(t, "inv-1", entry.InvocationID)
	assert.Equal(t, string(work.ExecutedNonIncrementally), entry.Outcome)
	out, _ := entry.Outputs.Get("out")
	assert.Equal(t, []string{"out/a.txt", "out/b.txt"}, out.Paths())
}

func TestExecute_UpToDate(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{}))

	u := f.copyUnit(work.Spec{})
	res := f.run(u)

	assert.Equal(t, work.UpToDate, res.Outcome)
	assert.Empty(t, res.Reasons)
	assert.False(t, u.executed)
	assert.Equal(t, []work.State{work.Pending, work.SnapshottingInputs, work.Completed}, res.States)

	entry, _, _ := f.store.Load(context.Background(), ":copy")
	assert.Equal(t, int64(1), entry.Seq, "history untouched")
	assert.Equal(t, []int64{1}, f.clock.Issued())
}

func TestExecute_IncrementalAfterInputChange(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/f1", "1")
	f.ws.Write("src/f2", "2")
	f.run(f.copyUnit(work.Spec{}))

	f.ws.Write("src/f2", "2x")
	f.ws.Write("src/f3", "3")
	u := f.copyUnit(work.Spec{})
	res := f.run(u)

	assert.Equal(t, work.ExecutedIncrementally, res.Outcome)
	assert.True(t, res.Incremental)
	assert.False(t, u.lastContext.FirstExecution)
	assert.Equal(t, []string{
		"Input property 'src' file src/f2 has changed.",
		"Input property 'src' file src/f3 has been added.",
	}, res.Reasons)

	fc, err := u.lastContext.InputChanges.FileChanges("src")
	require.NoError(t, err)
	require.Len(t, fc, 2)
	assert.Equal(t, changes.FileChange{Path: "src/f2", Kind: changes.Modified, Property: "src", Title: changes.TitleInput}, fc[0])
	assert.Equal(t, changes.FileChange{Path: "src/f3", Kind: changes.Added, Property: "src", Title: changes.TitleInput}, fc[1])

	assert.Equal(t, "2x", f.ws.Read("out/f2"))
	assert.Equal(t, "3", f.ws.Read("out/f3"))
}

func TestExecute_ReasonsAreCapped(t *testing.T) {
	f := newFixture(t, false)
	for i := 0; i < 5; i++ {
		f.ws.Write(fmt.Sprintf("src/f%d", i), "v1")
	}
	f.run(f.copyUnit(work.Spec{}))

	for i := 0; i < 5; i++ {
		f.ws.Write(fmt.Sprintf("src/f%d", i), "v2")
	}
	res := f.run(f.copyUnit(work.Spec{}))

	assert.Len(t, res.Reasons, DefaultMaxReasons)
	assert.Len(t, res.Changes, 5, "the body still sees every change")
}

func TestExecute_NonIncrementalInputChange(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.ws.Write("config.yaml", "level: 1")
	spec := work.Spec{Inputs: []work.InputProperty{
		{Name: "src", Roots: work.FileRoots{"src"}, Incremental: true},
		{Name: "config", Roots: work.FileRoots{"config.yaml"}},
	}}
	f.run(f.copyUnit(spec))

	f.ws.Write("config.yaml", "level: 2")
	u := f.copyUnit(spec)
	res := f.run(u)

	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, []string{"Input property 'config' file config.yaml has changed."}, res.Reasons)
	assert.False(t, u.lastContext.InputChanges.IsIncremental())
	assert.False(t, u.lastContext.FirstExecution)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"), "outputs are rebuilt after removal")
}

func TestExecute_NoIncrementalDeclarationsStillIncremental(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	spec := work.Spec{Inputs: []work.InputProperty{{Name: "src", Roots: work.FileRoots{"src"}}}}
	f.run(f.copyUnit(spec))

	f.ws.Write("src/a.txt", "a2")
	u := f.copyUnit(spec)
	res := f.run(u)

	assert.Equal(t, work.ExecutedIncrementally, res.Outcome)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, changes.Modified, res.Changes[0].Kind)

	_, err := u.lastContext.InputChanges.FileChanges("src")
	assert.Equal(t, changes.ErrCodePropertyNotFound, changes.CodeOf(err))
}

func TestExecute_ImplementationChange(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{}))

	u := f.copyUnit(work.Spec{})
	u.impl = "v2"
	res := f.run(u)

	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, []string{ReasonImplementationChanged}, res.Reasons)
}

func TestExecute_OutputChangeForcesNonIncremental(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.ws.Write("src/b.txt", "b")
	f.run(f.copyUnit(work.Spec{}))

	f.ws.Remove("out/a.txt")
	res := f.run(f.copyUnit(work.Spec{}))

	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, []string{"Output property 'out' file out/a.txt has been removed."}, res.Reasons)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"))
}

func TestExecute_PropertyAdded(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{}))

	spec := work.Spec{Inputs: []work.InputProperty{
		{Name: "src", Roots: work.FileRoots{"src"}, Incremental: true},
		{Name: "extra", Roots: work.FileRoots{"extra"}, Incremental: true},
	}}
	res := f.run(f.copyUnit(spec))

	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, []string{"Input property 'extra' has been added."}, res.Reasons)
}

func TestExecute_OverlappingOutputsIgnoreForeignFiles(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	spec := work.Spec{Overlapping: true}
	f.run(f.copyUnit(spec))

	f.ws.Write("out/foreign.txt", "someone else")
	res := f.run(f.copyUnit(spec))
	assert.Equal(t, work.UpToDate, res.Outcome)

	f.ws.Write("src/b.txt", "b")
	res = f.run(f.copyUnit(spec))
	assert.Equal(t, work.ExecutedIncrementally, res.Outcome)

	entry, _, _ := f.store.Load(context.Background(), ":copy")
	out, _ := entry.Outputs.Get("out")
	assert.Equal(t, []string{"out/a.txt", "out/b.txt"}, out.Paths(), "foreign file is not recorded as an output")
}

func TestExecute_DidNoWork(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	u := f.copyUnit(work.Spec{})
	u.body = func(context.Context, work.ExecutionContext) (work.WorkResult, error) {
		return work.DidNoWork, nil
	}

	res := f.run(u)
	assert.Equal(t, work.UpToDate, res.Outcome)
	assert.True(t, u.executed)
}

func TestExecute_FailureIsRecorded(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	u := f.copyUnit(work.Spec{})
	u.body = func(context.Context, work.ExecutionContext) (work.WorkResult, error) {
		return 0, errors.New("compiler crashed")
	}

	res, err := f.exec.Execute(context.Background(), u)
	require.Error(t, err)
	assert.True(t, IsExecutionFailure(err))
	assert.Equal(t, work.Failed, res.States[len(res.States)-1])

	entry, ok, err := f.store.Load(context.Background(), ":copy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, entry.Successful)

	retry := f.copyUnit(work.Spec{})
	res = f.run(retry)
	assert.Equal(t, []string{ReasonPreviousFailed}, res.Reasons)
	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.True(t, retry.lastContext.FirstExecution)
}

func TestExecute_ContractViolationAborts(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	u := f.copyUnit(work.Spec{})
	u.body = func(_ context.Context, ec work.ExecutionContext) (work.WorkResult, error) {
		_, err := ec.InputChanges.FileChanges("not-a-property")
		return 0, err
	}

	_, err := f.exec.Execute(context.Background(), u)
	require.Error(t, err)
	assert.True(t, changes.IsContractViolation(err))
	assert.Equal(t, changes.ErrCodePropertyNotFound, changes.CodeOf(err))
}

func TestExecute_UncomparableIncrementalValue(t *testing.T) {
	f := newFixture(t, false)
	u := f.copyUnit(work.Spec{Inputs: []work.InputProperty{
		{Name: "src", Roots: work.FileRoots{"src"}, Value: []string{"src"}, Incremental: true},
	}})

	_, err := f.exec.Execute(context.Background(), u)
	require.Error(t, err)
	assert.Equal(t, changes.ErrCodeUncomparableValue, changes.CodeOf(err))
	assert.False(t, u.executed)
}

func TestExecute_InvalidUTF8InputNameFails(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	if err := os.WriteFile(filepath.Join(f.ws.Root, "src", "b\xff.txt"), []byte("b"), 0o644); err != nil {
		t.Skipf("file system rejects non-UTF-8 names: %v", err)
	}
	u := f.copyUnit(work.Spec{})

	_, err := f.exec.Execute(context.Background(), u)
	require.ErrorIs(t, err, fingerprint.ErrInvalidPath)
	assert.False(t, u.executed)

	_, ok, err := f.store.Load(context.Background(), ":copy")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecute_Timeout(t *testing.T) {
	f := newFixture(t, false)
	u := f.copyUnit(work.Spec{Timeout: 20 * time.Millisecond})
	u.body = func(ctx context.Context, _ work.ExecutionContext) (work.WorkResult, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	_, err := f.exec.Execute(context.Background(), u)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestExecute_FromCache(t *testing.T) {
	f := newFixture(t, true)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{Cacheable: true}))
	assert.Equal(t, 1, f.cache.Len())

	f.ws.Remove("out")
	require.NoError(t, f.store.Remove(context.Background(), ":copy"))

	u := f.copyUnit(work.Spec{Cacheable: true})
	res := f.run(u)

	assert.Equal(t, work.FromCache, res.Outcome)
	assert.False(t, u.executed)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"))
	assert.Equal(t, []work.State{work.Pending, work.SnapshottingInputs, work.Completed}, res.States)

	res = f.run(f.copyUnit(work.Spec{Cacheable: true}))
	assert.Equal(t, work.UpToDate, res.Outcome)
}

func TestExecute_FromCacheRemovesStaleOutputs(t *testing.T) {
	f := newFixture(t, true)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{Cacheable: true}))

	f.ws.Remove("src/a.txt")
	f.ws.Write("src/b.txt", "b")
	f.run(f.copyUnit(work.Spec{Cacheable: true}))
	require.True(t, f.ws.Exists("out/b.txt"))
	require.False(t, f.ws.Exists("out/a.txt"))

	// back to the first inputs: their outputs are in the cache
	f.ws.Remove("src/b.txt")
	f.ws.Write("src/a.txt", "a")
	res := f.run(f.copyUnit(work.Spec{Cacheable: true}))
	assert.Equal(t, work.FromCache, res.Outcome)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"))
	assert.False(t, f.ws.Exists("out/b.txt"))

	res = f.run(f.copyUnit(work.Spec{Cacheable: true}))
	assert.Equal(t, work.UpToDate, res.Outcome)
	assert.Empty(t, res.Reasons)
}

func TestExecute_FromCacheKeepsOverlappingOutputs(t *testing.T) {
	f := newFixture(t, true)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{Cacheable: true, Overlapping: true}))

	f.ws.Remove("out")
	require.NoError(t, f.store.Remove(context.Background(), ":copy"))
	f.ws.Write("out/other.txt", "from another unit")

	res := f.run(f.copyUnit(work.Spec{Cacheable: true, Overlapping: true}))
	assert.Equal(t, work.FromCache, res.Outcome)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"))
	assert.Equal(t, "from another unit", f.ws.Read("out/other.txt"))
}

func TestExecute_FailedCacheLoadFallsBackToExecution(t *testing.T) {
	f := newFixture(t, true)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{Cacheable: true}))

	// Corrupt the stored entry so the restore fails after writing.
	in, err := f.exec.Inspect(context.Background(), f.copyUnit(work.Spec{Cacheable: true}))
	require.NoError(t, err)
	key := buildcache.Key(fingerprint.CacheKey(":copy", in.Implementation, in.Inputs))
	entry, ok, err := f.cache.Load(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	entry.Files[0].Content = []byte("corrupt")
	require.NoError(t, f.cache.Store(context.Background(), entry))

	f.ws.Remove("out")
	require.NoError(t, f.store.Remove(context.Background(), ":copy"))

	u := f.copyUnit(work.Spec{Cacheable: true})
	res := f.run(u)

	assert.True(t, u.removedOutputs)
	assert.True(t, u.executed)
	assert.Equal(t, work.ExecutedNonIncrementally, res.Outcome)
	assert.Equal(t, "a", f.ws.Read("out/a.txt"))
}

func TestExecute_NotCacheableSkipsCache(t *testing.T) {
	f := newFixture(t, true)
	f.ws.Write("src/a.txt", "a")
	f.run(f.copyUnit(work.Spec{}))
	assert.Equal(t, 0, f.cache.Len())
}

func TestInspect_DoesNotExecuteOrStore(t *testing.T) {
	f := newFixture(t, false)
	f.ws.Write("src/a.txt", "a")
	u := f.copyUnit(work.Spec{})

	in, err := f.exec.Inspect(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, in.UpToDate())
	assert.False(t, in.Usable())
	assert.Nil(t, in.InputChanges())
	assert.Equal(t, []string{"src"}, in.IncrementalProperties)
	assert.False(t, u.executed)

	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNew_RequiresFingerprinter(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
