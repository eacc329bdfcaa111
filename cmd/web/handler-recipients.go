package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/repositories"
)

// listRecipients responds with the recipients, optionally filtered with ?adminViewed=true|false.
func (app *application) listRecipients(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListFilter
	if v := r.URL.Query().Get("adminViewed"); v != "" {
		viewed, err := strconv.ParseBool(v)
		if err != nil {
			app.clientError(w, r, http.StatusBadRequest,
				errors.Wrap(err, "parse adminViewed", slog.String("adminViewed", v)))
			return
		}
		filter.AdminViewed = &viewed
	}
	list, err := app.recipients.List(r.Context(), filter)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Recipient{}
	}
	app.writeJSON(w, r, http.StatusOK, list)
}

func (app *application) getRecipient(w http.ResponseWriter, r *http.Request) {
	recipient, err := app.recipients.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, recipient)
}

type viewedRequest struct {
	Viewed bool `json:"viewed"`
}

// markRecipientViewed sets the viewed flag. An empty body marks the recipient as viewed.
func (app *application) markRecipientViewed(w http.ResponseWriter, r *http.Request) {
	req := viewedRequest{Viewed: true}
	if err := app.readJSON(w, r, &req, true); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := app.recipients.MarkViewed(r.Context(), r.PathValue("id"), req.Viewed); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type responseRequest struct {
	Answer    json.RawMessage `json:"answer"`
	Confirmed bool            `json:"confirmed"`
}

type responseResult struct {
	// Next is null when the flow ends after the answered question.
	Next *models.QuestionID `json:"next"`
}

// recordResponse stores the answer to a question and responds with the question to ask next.
func (app *application) recordResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := app.readJSON(w, r, &req, false); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	next, err := app.recorder.ParseAndRecord(r.Context(),
		r.PathValue("id"), models.QuestionID(r.PathValue("questionID")), req.Answer, req.Confirmed)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	var result responseResult
	if next != flow.Terminal {
		result.Next = &next
	}
	app.writeJSON(w, r, http.StatusOK, result)
}

func (app *application) deleteResponse(w http.ResponseWriter, r *http.Request) {
	err := app.recipients.DeleteResponse(r.Context(), r.PathValue("id"), models.QuestionID(r.PathValue("questionID")))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) deleteRecipient(w http.ResponseWriter, r *http.Request) {
	if err := app.recipients.Delete(r.Context(), r.PathValue("id")); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
