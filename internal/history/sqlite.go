package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on executions.seq
const currentSchemaVersion = 1

// SQLiteStore is the durable Store.
// Uses SQLite with WAL mode for concurrent read access.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the entry stored for identity.
func (s *SQLiteStore) Load(ctx context.Context, identity string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, invocation_id, seq, implementation_hash, inputs, outputs, outcome, successful, duration_ms
		FROM executions
		WHERE identity = ?
	`, identity)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load %s: %w", identity, err)
	}
	return rec.Entry, true, nil
}

// Store upserts the entry for identity.
func (s *SQLiteStore) Store(ctx context.Context, identity string, entry Entry) error {
	inputs, err := marshalSnapshot(entry.Inputs)
	if err != nil {
		return fmt.Errorf("store %s: %w", identity, err)
	}
	outputs, err := marshalSnapshot(entry.Outputs)
	if err != nil {
		return fmt.Errorf("store %s: %w", identity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions
		(identity, invocation_id, seq, implementation_hash, inputs, outputs, outcome, successful, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			invocation_id = excluded.invocation_id,
			seq = excluded.seq,
			implementation_hash = excluded.implementation_hash,
			inputs = excluded.inputs,
			outputs = excluded.outputs,
			outcome = excluded.outcome,
			successful = excluded.successful,
			duration_ms = excluded.duration_ms
	`,
		identity,
		entry.InvocationID,
		entry.Seq,
		entry.ImplementationHash,
		inputs,
		outputs,
		entry.Outcome,
		boolToInt(entry.Successful),
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", identity, err)
	}
	return nil
}

// Remove deletes the entry for identity.
func (s *SQLiteStore) Remove(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("remove %s: %w", identity, err)
	}
	return nil
}

// List returns every record ordered by identity (binary collation).
// Returns an empty slice (not nil) when the store is empty.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, invocation_id, seq, implementation_hash, inputs, outputs, outcome, successful, duration_ms
		FROM executions
		ORDER BY identity COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec        Record
		inputs     string
		outputs    string
		successful int
		durationMS int64
	)
	if err := row.Scan(
		&rec.Identity,
		&rec.Entry.InvocationID,
		&rec.Entry.Seq,
		&rec.Entry.ImplementationHash,
		&inputs,
		&outputs,
		&rec.Entry.Outcome,
		&successful,
		&durationMS,
	); err != nil {
		return Record{}, err
	}

	var err error
	if rec.Entry.Inputs, err = unmarshalSnapshot(inputs); err != nil {
		return Record{}, fmt.Errorf("scan %s inputs: %w", rec.Identity, err)
	}
	if rec.Entry.Outputs, err = unmarshalSnapshot(outputs); err != nil {
		return Record{}, fmt.Errorf("scan %s outputs: %w", rec.Identity, err)
	}
	rec.Entry.Successful = successful == 1
	rec.Entry.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the seq index used by history listings ordered by time.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_executions_seq ON executions(seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
