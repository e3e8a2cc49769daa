package handlers

import (
	"net/http"

	"smiles/internal/services"

	"github.com/gin-gonic/gin"
)

// Stats returns the global counter with the company and sender leaderboards
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	limit := leaderboardLimit(c)

	count, err := h.svc.Stats.GlobalSmileCount(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	companies, err := h.svc.Stats.TopCompanies(ctx, limit)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	senders, err := h.svc.Stats.TopSendersGlobal(ctx, limit)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	totalCompanies, err := h.svc.Stats.TotalCompanies(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"smile_count":     count,
		"goal":            services.SmileGoal,
		"progress":        services.GlobalProgress(count),
		"total_companies": totalCompanies,
		"top_companies":   companies,
		"top_senders":     senders,
	})
}

func (h *Handler) CompanyStats(c *gin.Context) {
	stats, err := h.svc.Stats.CompanyStats(c.Request.Context(), c.Param("domain"), leaderboardLimit(c))
	if err != nil {
		h.respondError(c, err, "Failed to load company stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
