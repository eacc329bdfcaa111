package main

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/recipients"
)

const maxRecipientList = 10 << 20

func (app *application) campaignSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="recipients-sample.csv"`)
	if err := recipients.WriteSampleCSV(w); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "failed to write sample", errors.SlogError(err))
	}
}

// runCampaign sends the entry question to the recipients in the uploaded CSV and responds with the run report.
//
// The list is either the raw request body or the "file" part of a multipart form. The run is cancelled when the
// client goes away and the rows processed so far are reported.
func (app *application) runCampaign(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := errors.Join(rc.SetReadDeadline(time.Time{}), rc.SetWriteDeadline(time.Time{})); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to clear deadlines", errors.SlogError(err))
	}

	body, err := app.recipientList(w, r)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	defer func() {
		_ = body.Close()
	}()

	raw, err := recipients.ReadCSV(body)
	if err != nil {
		// Malformed and oversized lists are both the client's fault.
		app.clientError(w, r, http.StatusBadRequest, err)
		return
	}
	rows := recipients.Normalize(raw)
	if len(rows) == 0 {
		app.clientError(w, r, http.StatusBadRequest, errors.Wrap(recipients.ErrNoRecipients, "normalize recipient list"))
		return
	}

	entry, err := campaign.EntryQuestion(r.Context(), app.questions)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	report, err := app.dispatcher.Dispatch(r.Context(), rows, entry, app.cfg.Workers)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, report)
}

func (app *application) recipientList(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecipientList)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.Wrap(err, "read form file")
	}
	return file, nil
}
