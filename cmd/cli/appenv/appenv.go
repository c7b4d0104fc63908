// Package appenv wires the database, the repositories and the Keeper for the CLI commands.
package appenv

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/keeper/internal/ai"
	"github.com/myrjola/keeper/internal/config"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/logging"
	"github.com/myrjola/keeper/internal/repositories"
	"github.com/myrjola/keeper/internal/sqlite"
)

type Env struct {
	Logger        *slog.Logger
	Scenarios     *repositories.ScenarioRepository
	Investigators *repositories.InvestigatorRepository
	Sessions      *repositories.SessionRepository
	Completer     *ai.Client

	db        *sqlite.Database
	keeperCfg keeper.Config
}

// Open reads the configuration with lookupEnv and opens the database. Logs go to logSink.
func Open(
	ctx context.Context,
	lookupEnv func(string) (string, bool),
	logSink io.Writer,
	level slog.Level,
) (*Env, error) {
	logger := logging.NewLogger(logSink, level)
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	keeperCfg, err := cfg.Keeper()
	if err != nil {
		return nil, errors.Wrap(err, "load keeper config")
	}
	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	return &Env{
		Logger:        logger,
		Scenarios:     repositories.NewScenarioRepository(db, logger),
		Investigators: repositories.NewInvestigatorRepository(db, logger),
		Sessions:      repositories.NewSessionRepository(db, logger),
		Completer:     ai.NewClient(cfg.LLM(), http.DefaultClient, logger),
		db:            db,
		keeperCfg:     keeperCfg,
	}, nil
}

// Keeper returns an orchestrator writing sessions to store.
func (e *Env) Keeper(store keeper.SessionStore) *keeper.Orchestrator {
	return keeper.NewOrchestrator(e.Logger, store, e.Scenarios, e.Investigators, e.Completer, e.keeperCfg)
}

func (e *Env) Close() error {
	return e.db.Close()
}
