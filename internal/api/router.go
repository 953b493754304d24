package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"escalation-service/internal/logging"
)

// NewRouter builds the HTTP surface for the engine.
func NewRouter(h *Handler, logger *logging.Logger, basePath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(basePath)
	{
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts", h.GetPendingAlerts)
		api.DELETE("/alerts", h.ClearAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.POST("/alerts/:id/ack", h.AcknowledgeAlert)
		api.GET("/stats", h.GetStats)
		api.GET("/config", h.GetConfig)
		api.PATCH("/config", h.UpdateConfig)
		api.GET("/stream", h.Stream)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
