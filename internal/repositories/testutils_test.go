package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/keeper/internal/sqlite"
	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// newTestDB creates a new in-memory database with the schema and fixtures applied.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	dbs, err := sqlite.NewDatabase(context.Background(), ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, dbs.Close())
	})
	return dbs
}
