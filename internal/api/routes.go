package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aegisdns/aegisdns/internal/api/handlers"
)

// RegisterRoutes wires the control-API endpoint table from SPEC_FULL.md
// §4.4, plus the ambient /health addition.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler) {
	r.GET("/health", h.Health)

	r.POST("/update", h.Update)
	r.GET("/records", h.ListRecords)
	r.PUT("/records/:name", h.PatchRecord)
	r.DELETE("/records/:name", h.DeleteRecord)
}
