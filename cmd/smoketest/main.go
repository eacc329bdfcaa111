package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/myrjola/flowcast/internal/e2etest"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/logging"
	"github.com/myrjola/flowcast/internal/models"
)

type health struct {
	Status    string `json:"status"`
	Campaigns bool   `json:"campaigns"`
}

// TestAPI checks the read-only endpoints of a deployment.
func TestAPI(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	var h health
	status, err := client.JSON(ctx, http.MethodGet, "/api/healthy", nil, &h)
	if err != nil {
		return errors.Wrap(err, "get health")
	}
	if status != http.StatusOK || h.Status != "ok" {
		return errors.New("unhealthy", slog.Int("status", status), slog.String("health", h.Status))
	}
	if !h.Campaigns {
		return errors.New("channel credentials are not configured")
	}

	var questions []models.Question
	if status, err = client.JSON(ctx, http.MethodGet, "/api/questions", nil, &questions); err != nil {
		return errors.Wrap(err, "list questions")
	}
	if status != http.StatusOK || len(questions) == 0 {
		return errors.New("no questions", slog.Int("status", status))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	url := "https://" + os.Args[1]
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if err := TestAPI(ctx, e2etest.NewClient(url)); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing api", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
