package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/myrjola/keeper/internal/e2etest"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/logging"
	"github.com/myrjola/keeper/internal/models"
)

// PlayIntroduction creates a session and streams its introduction turn.
func PlayIntroduction(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute) //nolint:mnd // a full keeper turn
	defer cancel()

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for server")
	}

	var scenarios []models.Scenario
	if _, err := client.JSON(ctx, http.MethodGet, "/api/scenarios", nil, &scenarios); err != nil {
		return errors.Wrap(err, "list scenarios")
	}
	var investigators []models.Investigator
	if _, err := client.JSON(ctx, http.MethodGet, "/api/investigators", nil, &investigators); err != nil {
		return errors.Wrap(err, "list investigators")
	}
	if len(scenarios) == 0 || len(investigators) == 0 {
		return errors.New("no scenarios or investigators",
			slog.Int("scenarios", len(scenarios)), slog.Int("investigators", len(investigators)))
	}

	var session models.Session
	status, err := client.JSON(ctx, http.MethodPost, "/api/sessions", map[string]string{
		"scenarioId":     scenarios[0].ID,
		"investigatorId": investigators[0].ID,
	}, &session)
	if err != nil {
		return errors.Wrap(err, "create session")
	}
	if status != http.StatusCreated {
		return errors.New("unexpected status creating session", slog.Int("status", status))
	}

	path := "/api/sessions/" + session.ID
	if status, err = client.JSON(ctx, http.MethodPost, path+"/turns", map[string]string{}, nil); err != nil {
		return errors.Wrap(err, "start introduction")
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return errors.New("unexpected status starting introduction", slog.Int("status", status))
	}
	events, err := client.Events(ctx, path+"/stream")
	if err != nil {
		return errors.Wrap(err, "stream introduction")
	}
	if len(events) == 0 || events[len(events)-1].Name != "session" {
		return errors.New("stream did not end with the session", slog.Int("events", len(events)))
	}
	return nil
}

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only the base URL to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <url>")
		os.Exit(1)
	}

	url := os.Args[1]
	ctx = logging.WithAttrs(ctx, slog.String("url", url))

	if err := PlayIntroduction(ctx, e2etest.NewClient(url)); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error playing introduction", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
