package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/keeper/internal/ai"
	"github.com/myrjola/keeper/internal/broker"
	"github.com/myrjola/keeper/internal/config"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/logging"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/pprofserver"
	"github.com/myrjola/keeper/internal/repositories"
	"github.com/myrjola/keeper/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

type application struct {
	logger        *slog.Logger
	scenarios     *repositories.ScenarioRepository
	investigators *repositories.InvestigatorRepository
	sessions      *sessionFeed
	keeper        *keeper.Orchestrator
	updates       *broker.ChannelBroker[string, models.ChatMessage]
	// turns tracks the goroutines running Keeper turns so that shutdown can wait for their commit.
	turns sync.WaitGroup
	// turnTimeout bounds a Keeper turn that outlives its HTTP request.
	turnTimeout          time.Duration
	completionConfigured bool
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cfg       config.Config
		keeperCfg keeper.Config
		db        *sqlite.Database
		err       error
	)
	if cfg, err = config.Load(lookupEnv); err != nil {
		return errors.Wrap(err, "load config")
	}
	if keeperCfg, err = cfg.Keeper(); err != nil {
		return errors.Wrap(err, "load keeper config")
	}

	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database", errors.SlogError(closeErr))
		}
	}()

	scenarios := repositories.NewScenarioRepository(db, logger)
	investigators := repositories.NewInvestigatorRepository(db, logger)
	sessions := newSessionFeed(repositories.NewSessionRepository(db, logger), logger)
	completer := ai.NewClient(cfg.LLM(), &http.Client{Timeout: 0}, logger) //nolint:exhaustruct // turns time out by ctx
	if !completer.Configured() {
		logger.LogAttrs(ctx, slog.LevelWarn, "KEEPER_API_KEY not set, the Keeper narrates fallback turns")
	}

	app := application{
		logger:        logger,
		scenarios:     scenarios,
		investigators: investigators,
		sessions:      sessions,
		keeper:        keeper.NewOrchestrator(logger, sessions, scenarios, investigators, completer, keeperCfg),
		updates:       broker.NewChannelBroker[string, models.ChatMessage](),
		turns:         sync.WaitGroup{},
		turnTimeout:   2 * time.Minute, //nolint:mnd // generous for slow models

		completionConfigured: completer.Configured(),
	}
	go app.updates.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.configureAndStartServer(gctx, cfg.Addr)
	})
	g.Go(func() error {
		return errors.Wrap(db.StartDatabaseOptimizer(gctx), "database optimizer")
	})
	if cfg.PprofPort != "" {
		g.Go(func() error {
			return pprofserver.ListenAndServe(gctx, cfg.PprofPort, logger)
		})
	}
	err = g.Wait()

	// Turns commit after their request is gone, let them finish before the database closes.
	app.turns.Wait()
	app.updates.Stop()
	return err //nolint:wrapcheck // errors are wrapped in the goroutines
}

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(err))
		os.Exit(1) //nolint:gocritic // stop is only a signal registration
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
