package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/config"
	"github.com/vovakirdan/topicrooms/internal/core"
	"github.com/vovakirdan/topicrooms/internal/feed"
	"github.com/vovakirdan/topicrooms/internal/metrics"
	"github.com/vovakirdan/topicrooms/internal/proto"
	transporthttp "github.com/vovakirdan/topicrooms/internal/transport/http"
)

// App wires together core, feed and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	bus             *core.Bus[core.RoomTaggedEvent]
	ingestor        *core.Ingestor
	source          io.Closer
	log             *zerolog.Logger
}

// LoadRegistry validates cfg and builds the room registry. Topic files are
// resolved relative to baseDir.
func LoadRegistry(cfg *config.Config, baseDir string) (*core.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs, err := cfg.RoomSpecs(baseDir)
	if err != nil {
		return nil, err
	}
	reg, err := core.BuildRegistry(specs, core.MatchOptions{CaseSensitive: cfg.CaseSensitive})
	if err != nil {
		return nil, err
	}
	if _, ok := reg.Lookup(cfg.DefaultRoom); !ok {
		return nil, core.NewConfigError("default room %q is not registered", cfg.DefaultRoom)
	}
	return reg, nil
}

// New constructs the application with provided configuration. Any error
// returned is a *core.ConfigError or wraps one.
func New(cfg *config.Config, baseDir string, logger *zerolog.Logger) (*App, error) {
	reg, err := LoadRegistry(cfg, baseDir)
	if err != nil {
		return nil, err
	}
	for _, room := range reg.Rooms() {
		logger.Info().Str("room", room.ID).Int("topics", len(room.Topics)).Msg("room registered")
	}

	bus := core.NewBus[core.RoomTaggedEvent](cfg.QueueSize)
	bus.OnDrop = metrics.BusDropped.Inc

	source, err := newSource(cfg, baseDir, reg, logger)
	if err != nil {
		return nil, err
	}

	ingestor := core.NewIngestor(reg, bus, source, proto.Decoder{}, logger)
	server, err := transporthttp.NewServer(reg, bus, ingestor, cfg, logger)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        reg,
		bus:             bus,
		ingestor:        ingestor,
		source:          source,
		log:             logger,
	}, nil
}

type closableSource interface {
	core.FeedSource
	io.Closer
}

func newSource(cfg *config.Config, baseDir string, reg *core.Registry, logger *zerolog.Logger) (closableSource, error) {
	if cfg.Feed.File != "" {
		path := resolvePath(baseDir, cfg.Feed.File)
		src, err := feed.OpenFile(path, cfg.Feed.ReplayRate)
		if err != nil {
			return nil, core.NewConfigError("open feed file: %v", err)
		}
		logger.Info().Str("path", path).Float64("rate", cfg.Feed.ReplayRate).Msg("replaying feed from file")
		return src, nil
	}

	track := reg.TrackTerms()
	logger.Info().Str("url", cfg.Feed.URL).Int("track_terms", len(track)).Msg("using streaming feed")
	return feed.NewStreamSource(feed.StreamConfig{
		URL:            cfg.Feed.URL,
		Token:          cfg.Feed.Token,
		Track:          track,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		MaxReconnects:  cfg.Feed.MaxReconnects,
	}, logger), nil
}

// Addr returns the configured listen address.
func (a *App) Addr() string {
	return a.server.Addr
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts ingestion and the HTTP server and blocks until context
// cancellation or a fatal error. Feed termination is fatal.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	ingestErr := make(chan error, 1)

	go func() {
		ingestErr <- a.ingestor.Run(ctx)
	}()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		cancel()
		<-ingestErr
		a.cleanup()
		return err
	case err := <-ingestErr:
		a.log.Error().Err(err).Msg("ingestion stopped, shutting down")
		if shutdownErr := a.shutdown(); shutdownErr != nil {
			a.log.Warn().Err(shutdownErr).Msg("http shutdown failed")
		}
		<-serverErr
		return err
	case <-ctx.Done():
		if err := <-ingestErr; err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn().Err(err).Msg("ingestion stopped with error")
		}
		if err := a.shutdown(); err != nil {
			return err
		}
		return <-serverErr
	}
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down http server")
	// Closing the bus first ends websocket sessions, which Shutdown does not track.
	a.cleanup()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// cleanup closes the bus and the feed source.
func (a *App) cleanup() {
	a.bus.Close()
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close feed source")
		}
	}
}

func resolvePath(baseDir, path string) string {
	if path == "-" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
