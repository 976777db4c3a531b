package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"geo-insights/config"
	"geo-insights/store"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	verbose bool
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "geo",
		Short:         "Content intelligence for generative engine optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			logger, err := newLogger(a.cfg.LogLevel, a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.crawlCommand(),
		a.agentsCommand(),
		a.gapCommand(),
		a.runCommand(),
	)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg.Level = lvl
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// openStore loads the content store from the JSON file and, when MONGO_URI
// is set, mirrors every flush into MongoDB as well.
func (a *app) openStore(ctx context.Context, path string) (*store.Store, func(), error) {
	persisters := store.Multi{store.JSONFile{Path: path}}
	cleanup := func() {}

	if a.cfg.MongoURI != "" {
		mongo, err := store.NewMongoCollection(ctx, a.cfg.MongoURI, a.cfg.MongoDatabase, a.cfg.MongoCollection, a.logger)
		if err != nil {
			return nil, nil, err
		}
		persisters = append(persisters, mongo)
		cleanup = func() {
			if err := mongo.Close(context.Background()); err != nil {
				a.logger.Warn("Closing MongoDB client", zap.Error(err))
			}
		}
	}

	s, err := store.Open(ctx, persisters, a.logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}
