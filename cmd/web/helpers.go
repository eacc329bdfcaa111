package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/repositories"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(append(data, '\n')); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "failed to write response", errors.SlogError(err))
	}
}

// readJSON decodes the request body into dst. An empty body leaves dst untouched when allowEmpty is set.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeError(w, r, status, err.Error())
}

func (app *application) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	data, _ := json.Marshal(errorBody{Error: msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "failed to write error response", errors.SlogError(err))
	}
}

// handleError maps domain errors to client errors and everything else to a server error.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, err)
	case errors.Is(err, models.ErrAnswerMismatch), errors.Is(err, flow.ErrInvalidQuestion):
		app.clientError(w, r, http.StatusUnprocessableEntity, err)
	case errors.Is(err, campaign.ErrNoEntryQuestion), errors.Is(err, flow.ErrUnknownQuestion):
		app.clientError(w, r, http.StatusConflict, err)
	case errors.Is(err, campaign.ErrNoSender):
		app.clientError(w, r, http.StatusServiceUnavailable, err)
	default:
		app.serverError(w, r, err)
	}
}
