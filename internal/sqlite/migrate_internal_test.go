package sqlite

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	notesV1 = `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)`
	notesV2 = `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL, pinned INTEGER NOT NULL DEFAULT 0)`
	failing = `CREATE TRIGGER notes_guard AFTER INSERT ON notes BEGIN SELECT RAISE(FAIL, 'guarded'); END`
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := connect(":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()
	type check struct {
		query   string
		wantErr bool
	}
	tests := []struct {
		name    string
		schemas []string
		checks  []check
	}{
		{
			name:    "empty schema",
			schemas: []string{""},
			checks:  []check{{query: "SELECT * FROM sqlite_schema", wantErr: false}},
		},
		{
			name:    "new table",
			schemas: []string{notesV1},
			checks:  []check{{query: "INSERT INTO notes (id, body) VALUES ('n1', 'a')", wantErr: false}},
		},
		{
			name:    "deleted table",
			schemas: []string{notesV1, ""},
			checks:  []check{{query: "SELECT * FROM notes", wantErr: true}},
		},
		{
			name:    "added column",
			schemas: []string{notesV1, notesV2},
			checks:  []check{{query: "INSERT INTO notes (id, body, pinned) VALUES ('n1', 'a', 1)", wantErr: false}},
		},
		{
			name:    "removed column",
			schemas: []string{notesV2, notesV1},
			checks:  []check{{query: "INSERT INTO notes (id, body, pinned) VALUES ('n1', 'a', 1)", wantErr: true}},
		},
		{
			name:    "new index",
			schemas: []string{notesV1, notesV1 + "; CREATE INDEX notes_body ON notes (body)"},
			checks:  []check{{query: "DROP INDEX notes_body", wantErr: false}},
		},
		{
			name:    "deleted index",
			schemas: []string{notesV1 + "; CREATE INDEX notes_body ON notes (body)", notesV1},
			checks:  []check{{query: "DROP INDEX notes_body", wantErr: true}},
		},
		{
			name: "index survives table rebuild",
			schemas: []string{
				notesV1 + "; CREATE INDEX notes_body ON notes (body)",
				notesV2 + "; CREATE INDEX notes_body ON notes (body)",
			},
			checks: []check{{query: "DROP INDEX notes_body", wantErr: false}},
		},
		{
			name:    "new trigger",
			schemas: []string{notesV1 + "; " + failing},
			checks:  []check{{query: "INSERT INTO notes (id, body) VALUES ('n1', 'a')", wantErr: true}},
		},
		{
			name:    "deleted trigger",
			schemas: []string{notesV1 + "; " + failing, notesV1},
			checks:  []check{{query: "INSERT INTO notes (id, body) VALUES ('n1', 'a')", wantErr: false}},
		},
		{
			name: "changed trigger",
			schemas: []string{
				notesV1 + "; " + failing,
				notesV1 + "; CREATE TRIGGER notes_guard AFTER INSERT ON notes BEGIN SELECT 1; END",
			},
			checks: []check{{query: "INSERT INTO notes (id, body) VALUES ('n1', 'a')", wantErr: false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db := newTestDatabase(t)
			for _, schema := range tt.schemas {
				require.NoError(t, db.migrateTo(ctx, schema))
			}
			for _, c := range tt.checks {
				_, err := db.ReadWrite.ExecContext(ctx, c.query)
				if c.wantErr {
					require.Error(t, err, c.query)
				} else {
					require.NoError(t, err, c.query)
				}
			}
		})
	}
}

func TestDatabase_migrateTo_keepsRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.migrateTo(ctx, notesV1))
	_, err := db.ReadWrite.ExecContext(ctx, "INSERT INTO notes (id, body) VALUES ('n1', 'The cellar door is open.')")
	require.NoError(t, err)
	require.NoError(t, db.migrateTo(ctx, notesV2))

	var note struct {
		Body   string `db:"body"`
		Pinned int    `db:"pinned"`
	}
	require.NoError(t, db.ReadWrite.GetContext(ctx, &note, "SELECT body, pinned FROM notes WHERE id = 'n1'"))
	assert.Equal(t, "The cellar door is open.", note.Body)
	assert.Equal(t, 0, note.Pinned)
}

func TestDatabase_migrateTo_idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDatabase(t)

	for range 2 {
		require.NoError(t, db.migrateTo(ctx, schemaDefinition))
		_, err := db.ReadWrite.ExecContext(ctx, fixtures)
		require.NoError(t, err)
	}

	var scenarios int
	require.NoError(t, db.ReadWrite.GetContext(ctx, &scenarios, "SELECT COUNT(*) FROM scenarios"))
	assert.Equal(t, 3, scenarios)
}
