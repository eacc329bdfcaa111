package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	standard := alice.New(timeoutHandler)
	// Campaign runs pace their sends and outlive the default deadlines.
	long := alice.New()

	handle := func(pattern string, chain alice.Chain, h http.HandlerFunc) {
		mux.Handle(pattern, alice.New(app.instrument(pattern)).Extend(chain).ThenFunc(h))
	}

	handle("GET /api/healthy", standard, app.healthy)

	handle("GET /api/questions", standard, app.listQuestions)
	handle("PUT /api/questions/reorder", standard, app.reorderQuestions)
	handle("PUT /api/questions/{id}", standard, app.saveQuestion)
	handle("DELETE /api/questions/{id}", standard, app.deleteQuestion)

	handle("GET /api/campaigns/sample", standard, app.campaignSample)
	handle("POST /api/campaigns", long, app.runCampaign)

	handle("GET /api/recipients", standard, app.listRecipients)
	handle("GET /api/recipients/{id}", standard, app.getRecipient)
	handle("DELETE /api/recipients/{id}", standard, app.deleteRecipient)
	handle("PUT /api/recipients/{id}/viewed", standard, app.markRecipientViewed)
	handle("PUT /api/recipients/{id}/responses/{questionID}", standard, app.recordResponse)
	handle("DELETE /api/recipients/{id}/responses/{questionID}", standard, app.deleteResponse)

	mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
