package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/models"
)

// listQuestions responds with the question graph ordered by order ascending.
func (app *application) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := app.questions.List(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	app.writeJSON(w, r, http.StatusOK, questions)
}

type reorderRequest struct {
	IDs []models.QuestionID `json:"ids"`
}

func (app *application) reorderQuestions(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := app.readJSON(w, r, &req, false); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) == 0 {
		app.clientError(w, r, http.StatusBadRequest, errors.New("ids must not be empty"))
		return
	}
	if err := app.questions.Reorder(r.Context(), req.IDs); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveQuestion creates or replaces the question in the path. The body id may be omitted.
func (app *application) saveQuestion(w http.ResponseWriter, r *http.Request) {
	id := models.QuestionID(r.PathValue("id"))
	var q models.Question
	if err := app.readJSON(w, r, &q, false); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	if q.ID != "" && q.ID != id {
		app.clientError(w, r, http.StatusBadRequest, errors.New("body id does not match path",
			slog.String("path_id", string(id)), slog.String("body_id", string(q.ID))))
		return
	}
	q.ID = id
	if err := flow.Validate(q); err != nil {
		app.handleError(w, r, err)
		return
	}
	if err := app.questions.Save(r.Context(), q); err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, q)
}

func (app *application) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := app.questions.Delete(r.Context(), models.QuestionID(r.PathValue("id"))); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
