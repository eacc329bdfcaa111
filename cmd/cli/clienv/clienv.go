// Package clienv sets up the logger, configuration and database shared by the CLI commands.
package clienv

import (
	"context"
	"log/slog"
	"os"

	"github.com/myrjola/flowcast/internal/config"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/logging"
	"github.com/myrjola/flowcast/internal/sqlite"
	"github.com/spf13/cobra"
)

// VerboseFlag is the persistent root flag enabling debug logs.
const VerboseFlag = "verbose"

type Env struct {
	Logger *slog.Logger
	Config config.Config
	DB     *sqlite.Database
}

// Logger writes to the command's error stream so that stdout stays clean for command output.
func Logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, err := cmd.Flags().GetBool(VerboseFlag); err == nil && verbose {
		level = slog.LevelDebug
	}
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))
}

// Open loads the configuration from the environment and opens the database.
func Open(ctx context.Context, cmd *cobra.Command) (*Env, error) {
	logger := Logger(cmd)
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	db, err := sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	return &Env{Logger: logger, Config: cfg, DB: db}, nil
}

func (e *Env) Close() {
	if err := e.DB.Close(); err != nil {
		e.Logger.Error("failed to close database", errors.SlogError(err))
	}
}
