package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisdns/aegisdns/internal/api/models"
)

// Health handles GET /health, an ambient addition beyond spec.md's explicit
// endpoint table: readiness probes and the uptime/active-records gauges
// need somewhere to live that isn't the DNS wire protocol.
func (h *Handler) Health(c *gin.Context) {
	uptime := time.Since(h.StartedAt)
	if h.Metrics != nil {
		uptime = h.Metrics.Uptime()
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:        "ok",
		InstanceID:    h.InstanceID,
		UptimeSeconds: uptime.Seconds(),
		ActiveRecords: int64(h.Store.Count()),
	})
}
