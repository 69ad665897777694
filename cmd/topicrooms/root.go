package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/topicrooms/internal/app"
	"github.com/vovakirdan/topicrooms/internal/config"
	"github.com/vovakirdan/topicrooms/internal/log"
)

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "topicrooms",
		Short:         "Fan out a filtered event stream into topic rooms over websockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&opts.overrides.DefaultRoom, "default-room", "", "room new sessions start in")
	flags.StringVar(&opts.overrides.Feed.File, "feed-file", "", "replay records from a JSONL file instead of the stream (- for stdin)")
	flags.StringVar(&opts.overrides.Feed.URL, "feed-url", "", "upstream stream URL")

	root.AddCommand(newServeCmd(opts), newClassifyCmd(opts), newRoomsCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion loop and the websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// loadConfig resolves configuration and returns it with the directory that
// relative topic and feed files are resolved against.
func loadConfig(opts *rootOptions) (*config.Config, string, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")
	cfg, path, err := config.Load(bootstrap, opts.configPath)
	if err != nil {
		return nil, "", bootstrap, err
	}
	cfg.UpdateFrom(opts.overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	return &cfg, filepath.Dir(path), logger, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, baseDir, logger, err := loadConfig(opts)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, baseDir, logger)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	logger.Info().Str("addr", application.Addr()).Str("default_room", cfg.DefaultRoom).Msg("starting topicrooms server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
