package http

import (
	stdhttp "net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/config"
	"github.com/vovakirdan/topicrooms/internal/core"
)

// IngestStatus is the view of the ingestion loop exposed on /health.
type IngestStatus interface {
	State() core.IngestState
	Stats() core.IngestStats
}

// NewServer builds an HTTP server with websocket, REST, metrics and static routes.
func NewServer(reg *core.Registry, bus *core.Bus[core.RoomTaggedEvent], ingest IngestStatus, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	wsHandler, err := NewWSHandler(reg, bus, cfg, logger)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(ingest, bus, logger)
	roomHandlers := NewRoomHandlers(reg, logger)

	router.GET("/health", apiHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gin.WrapH(wsHandler))

	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/rooms/:id", roomHandlers.GetRoom)
	}

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			router.Static("/public", cfg.StaticDir)
			index := filepath.Join(cfg.StaticDir, "index.html")
			if _, err := os.Stat(index); err == nil {
				router.StaticFile("/", index)
			}
		} else {
			logger.Warn().Str("dir", cfg.StaticDir).Msg("static directory not found, not serving files")
		}
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}
