package main

import (
	"net/http"
	"time"

	"github.com/justinas/alice"
)

func (app *application) routes(timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	common := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	api := common.Append(jsonHeaders, func(h http.Handler) http.Handler {
		return timeoutHandler(h, timeout)
	})
	// The event stream is long-lived and must not be buffered by the timeout handler.
	events := common.Append(eventStreamHeaders)

	mux.Handle("GET /api/healthy", api.ThenFunc(app.healthy))

	mux.Handle("GET /api/scenarios", api.ThenFunc(app.listScenarios))
	mux.Handle("GET /api/investigators", api.ThenFunc(app.listInvestigators))

	mux.Handle("GET /api/sessions", api.ThenFunc(app.listSessions))
	mux.Handle("POST /api/sessions", api.ThenFunc(app.createSession))
	mux.Handle("GET /api/sessions/{sessionID}", api.ThenFunc(app.getSession))
	mux.Handle("POST /api/sessions/{sessionID}/turns", api.ThenFunc(app.startTurn))
	mux.Handle("POST /api/sessions/{sessionID}/cancel", api.ThenFunc(app.cancelTurn))
	mux.Handle("POST /api/sessions/{sessionID}/summary", common.Append(jsonHeaders).ThenFunc(app.summarize))
	mux.Handle("GET /api/sessions/{sessionID}/stream", events.ThenFunc(app.streamTurn))

	mux.Handle("/", common.ThenFunc(app.notFound))

	return mux
}
