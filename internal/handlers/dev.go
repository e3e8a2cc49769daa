package handlers

import (
	"net/http"
	"strconv"

	"smiles/internal/utils"

	"github.com/gin-gonic/gin"
)

const defaultDevEmails = 20

// localOnly keeps the development tools off any host but this machine
func localOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.IsLocalHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
			return
		}
		c.Next()
	}
}

// DevEmails returns the most recent logged emails, newest first
func (h *Handler) DevEmails(c *gin.Context) {
	limit := defaultDevEmails
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	emails, err := h.svc.DevLog.Recent(limit)
	if err != nil {
		h.respondError(c, err, "Failed to read email log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "emails": emails, "count": len(emails)})
}

func (h *Handler) ClearDevEmails(c *gin.Context) {
	if err := h.svc.DevLog.Clear(); err != nil {
		h.respondError(c, err, "Failed to clear email log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email log cleared"})
}
