package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/keeper/internal/errors"
)

// OptimizeInterval is how often StartDatabaseOptimizer runs optimize.
const OptimizeInterval = time.Hour

// StartDatabaseOptimizer runs optimize once per OptimizeInterval until ctx is done.
// See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) StartDatabaseOptimizer(ctx context.Context) error {
	for {
		start := time.Now()
		if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = errors.Wrap(err, "optimize database")
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize database", errors.SlogError(err))
		} else {
			db.logger.LogAttrs(ctx, slog.LevelInfo, "optimized database",
				slog.Duration("duration", time.Since(start)))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(OptimizeInterval):
			continue
		}
	}
}
