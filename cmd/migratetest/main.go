package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/repositories"
	"github.com/myrjola/flowcast/internal/sqlite"
	"github.com/myrjola/flowcast/internal/testhelpers"
)

// migratetest migrates a copy of the production database and checks that the question graph survived.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("FLOWCAST_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "FLOWCAST_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// Reading the questions through the repository decodes every stored input, which catches schema drift that a
	// plain row count would miss.
	questions, err := repositories.NewQuestionRepository(db, logger).List(ctx)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error listing questions", errors.SlogError(err))
		os.Exit(1)
	}
	if len(questions) == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no questions found, something is likely wrong")
		os.Exit(1)
	}
	var recipients int
	if err = db.ReadOnly.GetContext(ctx, &recipients, `SELECT COUNT(*) FROM recipients`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting recipients", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "database contents",
		slog.Int("questions", len(questions)), slog.Int("recipients", recipients))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
