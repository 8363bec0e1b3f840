package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Clear POST /admin/clear
func (h *DatasetHandler) Clear(c *gin.Context) {
	if err := h.index.Clear(c.Request.Context()); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Commit POST /admin/commit
func (h *DatasetHandler) Commit(c *gin.Context) {
	if err := h.index.Commit(c.Request.Context()); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Check GET /admin/check
func (h *DatasetHandler) Check(c *gin.Context) {
	report, err := h.index.Check(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
