package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/config"
	"github.com/myrjola/flowcast/internal/conversation"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/logging"
	"github.com/myrjola/flowcast/internal/metrics"
	"github.com/myrjola/flowcast/internal/pprofserver"
	"github.com/myrjola/flowcast/internal/repositories"
	"github.com/myrjola/flowcast/internal/sqlite"
	"github.com/myrjola/flowcast/internal/whatsapp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type application struct {
	logger     *slog.Logger
	cfg        config.Config
	questions  *repositories.QuestionRepository
	recipients *repositories.RecipientRepository
	dispatcher *campaign.Dispatcher
	recorder   *conversation.Recorder
	metrics    *metrics.Collector
	registry   *prometheus.Registry
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	if cfg.PprofAddr != "" {
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database", errors.SlogError(closeErr))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	questions := repositories.NewQuestionRepository(db, logger)
	recipientRepo := repositories.NewRecipientRepository(db, logger)

	// A nil interface makes campaign runs fail with campaign.ErrNoSender.
	var sender campaign.Sender
	if cfg.ChannelConfigured() {
		var client *whatsapp.Client
		if client, err = whatsapp.NewClient(whatsapp.Config{
			BaseURL:       cfg.WhatsAppBaseURL,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			Token:         cfg.WhatsAppToken,
			Timeout:       cfg.SendTimeout,
		}, logger); err != nil {
			return errors.Wrap(err, "new whatsapp client")
		}
		sender = client
	} else {
		logger.LogAttrs(ctx, slog.LevelWarn, "channel credentials missing, campaigns are disabled")
	}

	var pacer campaign.Pacer = campaign.DelayPacer{
		AfterSuccess: cfg.DelayAfterSuccess,
		AfterFailure: cfg.DelayAfterFailure,
	}
	if cfg.Workers > 1 {
		pacer = campaign.NewRatePacer(cfg.RatePerSecond, cfg.RateBurst)
	}

	app := application{
		logger:     logger,
		cfg:        cfg,
		questions:  questions,
		recipients: recipientRepo,
		dispatcher: campaign.NewDispatcher(logger, recipientRepo, sender, campaign.Options{
			SendTimeout: cfg.SendTimeout,
			Pacer:       pacer,
			Observer:    collector,
		}),
		recorder: conversation.NewRecorder(questions, recipientRepo, logger),
		metrics:  collector,
		registry: registry,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
