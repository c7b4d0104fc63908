package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/sqlite"
	"github.com/myrjola/keeper/internal/testhelpers"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("KEEPER_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "KEEPER_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// Sessions must survive the migration and the fixtures must be in place.
	var scenarios, sessions int
	if err = db.ReadOnly.GetContext(ctx, &scenarios, `SELECT COUNT(*) FROM scenarios`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching scenario count", errors.SlogError(err))
		os.Exit(1)
	}
	if err = db.ReadOnly.GetContext(ctx, &sessions, `SELECT COUNT(*) FROM sessions`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching session count", errors.SlogError(err))
		os.Exit(1)
	}
	if scenarios == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no scenarios found, something is likely wrong")
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "record count", slog.Int("scenarios", scenarios), slog.Int("sessions", sessions))

	if err = db.Close(); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error closing database", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
