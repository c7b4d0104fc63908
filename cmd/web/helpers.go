package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/repositories"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), slog.String("reason", msg))
	app.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// keeperError maps the errors of the repositories and the orchestrator to responses.
func (app *application) keeperError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, keeper.ErrTurnInFlight),
		errors.Is(err, keeper.ErrAlreadyIntroduced),
		errors.Is(err, keeper.ErrChatNotEmpty):
		app.clientError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, keeper.ErrEmptyAction), errors.Is(err, keeper.ErrMessageNotFound):
		app.clientError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, keeper.ErrNotConfigured):
		app.clientError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "failed to marshal response",
			errors.SlogError(errors.Wrap(err, "marshal response")))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readJSON decodes the request body into dst. Unknown fields are rejected. An empty body leaves dst untouched.
func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
