package main

import "net/http"

type health struct {
	Status string `json:"status"`
	// Campaigns is false when the channel credentials are missing.
	Campaigns bool `json:"campaigns"`
}

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, health{Status: "ok", Campaigns: app.cfg.ChannelConfigured()})
}
