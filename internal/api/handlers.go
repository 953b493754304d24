package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"escalation-service/internal/engine"
	"escalation-service/internal/logging"
	"escalation-service/internal/stream"
)

// Handler exposes the engine's operations over HTTP.
type Handler struct {
	engine *engine.Engine
	hub    *stream.Hub
	logger *logging.Logger
}

// NewHandler creates a Handler. hub may be nil to disable the stream
// endpoint.
func NewHandler(eng *engine.Engine, hub *stream.Hub, logger *logging.Logger) *Handler {
	return &Handler{engine: eng, hub: hub, logger: logger}
}

// CreateAlert handles POST /alerts. A suppressed alert (engine disabled or
// rate limited) is a 202, not an error.
func (h *Handler) CreateAlert(c *gin.Context) {
	var req engine.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid create alert request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}

	id, ok := h.engine.Create(req)
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"status": "suppressed"})
		return
	}

	alert, _ := h.engine.GetAlert(id)
	c.JSON(http.StatusCreated, gin.H{"id": id, "short_id": alert.ShortID})
}

// AcknowledgeAlert handles POST /alerts/:id/ack. The :id parameter accepts a
// full ID, a short ID, or a full-ID suffix.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id := c.Param("id")
	if !h.engine.Acknowledge(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

// GetPendingAlerts handles GET /alerts.
func (h *Handler) GetPendingAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.PendingAlerts())
}

// GetAlert handles GET /alerts/:id.
func (h *Handler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert, ok := h.engine.GetAlert(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.GetStats())
}

// GetConfig handles GET /config.
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Config())
}

// UpdateConfig handles PATCH /config with a partial update.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var update engine.ConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Errorf("Invalid config update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cfg, err := h.engine.UpdateConfig(update)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ClearAlerts handles DELETE /alerts.
func (h *Handler) ClearAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": h.engine.ClearAll()})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream handles GET /stream, upgrading to a WebSocket that receives alert
// lifecycle events.
func (h *Handler) Stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if !h.hub.Add(conn) {
		conn.Close()
		return
	}

	// Read loop only detects disconnects; clients never send payloads.
	go func() {
		defer func() {
			h.hub.Remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
