package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/logging"
)

type turnResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// startTurn runs a Keeper turn in the background. A blank text without an edit runs the introduction. The response
// is sent once the turn was accepted, follow it on the event stream of the session.
func (app *application) startTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var action keeper.Action
	if err := readJSON(r, &action); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	feed, ok := app.sessions.open(sessionID)
	if !ok {
		app.keeperError(w, r, keeper.ErrTurnInFlight)
		return
	}
	app.updates.Publish(sessionID, feed.updates)

	done := make(chan error, 1)
	app.turns.Add(1)
	go func() {
		defer app.turns.Done()
		// The turn commits even if the client goes away.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), app.turnTimeout)
		defer cancel()
		ctx = logging.WithSession(ctx, sessionID)

		var err error
		if strings.TrimSpace(action.Text) == "" && action.EditedFromMessageID == "" {
			_, err = app.keeper.Introduce(ctx, sessionID)
		} else {
			_, err = app.keeper.Submit(ctx, sessionID, action)
		}
		app.sessions.close(sessionID)
		app.updates.Unpublish(sessionID)
		if err != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "keeper turn failed", errors.SlogError(err))
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			app.keeperError(w, r, err)
			return
		}
		app.writeJSON(w, r, http.StatusOK, turnResponse{SessionID: sessionID, Status: "committed"})
	case <-feed.accepted:
		app.writeJSON(w, r, http.StatusAccepted, turnResponse{SessionID: sessionID, Status: "accepted"})
	}
}

// cancelTurn stops the partial updates of the in-flight turn. The turn commits with the text shown so far.
func (app *application) cancelTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if !app.keeper.Cancel(sessionID) {
		app.clientError(w, r, http.StatusConflict, "no keeper turn in flight")
		return
	}
	app.writeJSON(w, r, http.StatusAccepted, turnResponse{SessionID: sessionID, Status: "cancelled"})
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// summarize condenses the session into its running summary.
func (app *application) summarize(w http.ResponseWriter, r *http.Request) {
	// The completion may take longer than the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(app.turnTimeout)); err != nil {
		app.serverError(w, r, errors.Wrap(err, "extend write deadline"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), app.turnTimeout)
	defer cancel()

	summary, err := app.keeper.Summarize(ctx, r.PathValue("sessionID"))
	if err != nil {
		app.keeperError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, summaryResponse{Summary: summary})
}
