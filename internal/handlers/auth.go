package handlers

import (
	"net/http"

	"smiles/internal/auth"
	"smiles/internal/models"
	"smiles/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminLogin trades the admin password for a signed session cookie
func (h *Handler) AdminLogin(c *gin.Context) {
	if h.cfg.Admin.Password == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Admin login is not enabled"})
		return
	}

	var req models.AdminLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if !auth.CheckAdminPassword(h.cfg.Admin.Password, req.Password) {
		h.log.Warn("Failed admin login", zap.String("ip", utils.ClientIP(c)))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid password"})
		return
	}

	token, err := auth.GenerateAdminToken(h.cfg.Admin.JWTSecret, h.cfg.Admin.JWTExpiry)
	if err != nil {
		h.respondError(c, err, "Failed to sign in")
		return
	}

	auth.SetAdminCookie(c, token, int(h.cfg.Admin.JWTExpiry.Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}
