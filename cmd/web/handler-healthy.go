package main

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
	// Keeper is "streaming" with a completion endpoint and "fallback" without one.
	Keeper string `json:"keeper"`
}

func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	mode := "fallback"
	if app.completionConfigured {
		mode = "streaming"
	}
	app.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Keeper: mode})
}
