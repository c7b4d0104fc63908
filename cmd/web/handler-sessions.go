package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
)

// timeNow stamps new sessions.
var timeNow = time.Now

func (app *application) listScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := app.scenarios.List(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, scenarios)
}

func (app *application) listInvestigators(w http.ResponseWriter, r *http.Request) {
	investigators, err := app.investigators.List(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, investigators)
}

func (app *application) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.sessions.List(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, sessions)
}

func (app *application) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := app.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		app.keeperError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, session)
}

type createSessionRequest struct {
	ScenarioID     string `json:"scenarioId"`
	InvestigatorID string `json:"investigatorId"`
}

// createSession starts an active session for an existing scenario and investigator.
func (app *application) createSession(w http.ResponseWriter, r *http.Request) {
	var (
		req          createSessionRequest
		scenario     *models.Scenario
		investigator *models.Investigator
		err          error
		ctx          = r.Context()
	)
	if err = readJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ScenarioID == "" || req.InvestigatorID == "" {
		app.clientError(w, r, http.StatusUnprocessableEntity, "scenarioId and investigatorId are required")
		return
	}
	if scenario, err = app.scenarios.Get(ctx, req.ScenarioID); err != nil {
		app.keeperError(w, r, err)
		return
	}
	if investigator, err = app.investigators.Get(ctx, req.InvestigatorID); err != nil {
		app.keeperError(w, r, err)
		return
	}
	session := models.NewSession(uuid.NewString(), scenario, investigator, timeNow())
	if err = app.sessions.Upsert(ctx, session); err != nil {
		app.serverError(w, r, errors.Wrap(err, "create session"))
		return
	}
	app.writeJSON(w, r, http.StatusCreated, session)
}
