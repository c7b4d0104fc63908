package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
)

const (
	// eventMessage carries a snapshot of the Keeper message while the turn streams.
	eventMessage = "message"
	// eventSession carries the persisted session and ends the stream.
	eventSession = "session"
)

// streamTurn streams the in-flight turn of the session as server-sent events and ends with the persisted session.
// Only the first subscriber of a turn receives the snapshots. Later subscribers wait for the commit.
func (app *application) streamTurn(w http.ResponseWriter, r *http.Request) {
	var (
		ctx       = r.Context()
		sessionID = r.PathValue("sessionID")
		rc        = http.NewResponseController(w)
		session   *models.Session
		err       error
	)
	if _, err = app.sessions.Get(ctx, sessionID); err != nil {
		app.keeperError(w, r, err)
		return
	}
	if err = rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear write deadline"))
		return
	}
	w.WriteHeader(http.StatusOK)

	var updates chan models.ChatMessage
	select {
	case <-ctx.Done():
		return
	case updates = <-app.updates.Subscribe(sessionID):
	}

	if updates != nil {
		for streaming := true; streaming; {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-updates:
				if !ok {
					streaming = false
					break
				}
				if err = writeEvent(w, rc, eventMessage, msg); err != nil {
					app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
					return
				}
			}
		}
	}
	// Read again, the turn may have committed while this stream waited.
	if session, err = app.sessions.Get(ctx, sessionID); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "failed to read committed session", errors.SlogError(err))
		return
	}
	if err = writeEvent(w, rc, eventSession, session); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal event", slog.String("event", event))
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return errors.Wrap(err, "write event", slog.String("event", event))
	}
	if err = rc.Flush(); err != nil {
		return errors.Wrap(err, "flush event", slog.String("event", event))
	}
	return nil
}
