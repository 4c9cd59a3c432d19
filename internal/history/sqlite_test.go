package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/fingerprint"
)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(seq int64) Entry {
	return Entry{
		InvocationID:       "inv-1",
		Seq:                seq,
		ImplementationHash: "impl",
		Inputs: fingerprint.NewSnapshot(map[string]fingerprint.Fingerprint{
			"src": fingerprint.MustNew(map[string]fingerprint.Signature{"/f1": "h1", "/f2": "h2"}),
			"lib": fingerprint.Empty(),
		}),
		Outputs: fingerprint.NewSnapshot(map[string]fingerprint.Fingerprint{
			"out": fingerprint.MustNew(map[string]fingerprint.Signature{"/o1": "x"}),
		}),
		Outcome:    "EXECUTED_NON_INCREMENTALLY",
		Successful: true,
		Duration:   1500 * time.Millisecond,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Load(ctx, ":compile")
	require.NoError(t, err)
	assert.False(t, ok)

	want := testEntry(7)
	require.NoError(t, s.Store(ctx, ":compile", want))

	got, ok, err := s.Load(ctx, ":compile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.InvocationID, got.InvocationID)
	assert.Equal(t, want.Seq, got.Seq)
	assert.Equal(t, want.ImplementationHash, got.ImplementationHash)
	assert.True(t, want.Inputs.Equal(got.Inputs))
	assert.True(t, want.Outputs.Equal(got.Outputs))
	assert.Equal(t, want.Outcome, got.Outcome)
	assert.True(t, got.Successful)
	assert.Equal(t, want.Duration, got.Duration)

	// Empty fingerprints survive the round trip as present properties.
	assert.True(t, got.Inputs.Has("lib"))
}

func TestSQLiteStore_NonASCIIPathsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	entry := testEntry(1)
	entry.Inputs = fingerprint.NewSnapshot(map[string]fingerprint.Fingerprint{
		"src": fingerprint.MustNew(map[string]fingerprint.Signature{
			"src/caf\u00e9.txt":          "h1",
			"src/\u65e5\u672c\u2028.txt": "h2",
			"src/tab\tname.txt":          "h3",
		}),
	})
	require.NoError(t, s.Store(ctx, ":compile", entry))

	got, ok, err := s.Load(ctx, ":compile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.Inputs.Equal(got.Inputs))
}

func TestSQLiteStore_StoreReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, ":compile", testEntry(1)))

	failed := testEntry(2)
	failed.Successful = false
	failed.Outcome = "FAILED"
	require.NoError(t, s.Store(ctx, ":compile", failed))

	got, ok, err := s.Load(ctx, ":compile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Seq)
	assert.False(t, got.Successful)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteStore_ListOrderedAndRemove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	for _, id := range []string{":test", ":compile", ":assemble"} {
		require.NoError(t, s.Store(ctx, id, testEntry(1)))
	}

	records, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ":assemble", records[0].Identity)
	assert.Equal(t, ":compile", records[1].Identity)
	assert.Equal(t, ":test", records[2].Identity)

	require.NoError(t, s.Remove(ctx, ":compile"))
	require.NoError(t, s.Remove(ctx, ":missing"))

	_, ok, err := s.Load(ctx, ":compile")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Store(ctx, ":compile", testEntry(3)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Load(ctx, ":compile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Seq)
}
