package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/topicrooms/internal/core"
)

// APIHandlers provides service level HTTP endpoints.
type APIHandlers struct {
	ingest IngestStatus
	bus    *core.Bus[core.RoomTaggedEvent]
	log    *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(ingest IngestStatus, bus *core.Bus[core.RoomTaggedEvent], logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		ingest: ingest,
		bus:    bus,
		log:    logger,
	}
}

// HealthResponse represents the health response body.
type HealthResponse struct {
	Status    string           `json:"status"`
	Ingestion string           `json:"ingestion"`
	Sessions  int              `json:"sessions"`
	Stats     core.IngestStats `json:"stats"`
}

// Health reports liveness and the ingestion state.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Ingestion: core.IngestStarting.String()}
	if h.ingest != nil {
		state := h.ingest.State()
		resp.Ingestion = state.String()
		resp.Stats = h.ingest.Stats()
		if state == core.IngestStopped {
			resp.Status = "degraded"
		}
	}
	if h.bus != nil {
		resp.Sessions = h.bus.Len()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
