package handlers

import (
	"errors"
	"net/http"

	appErr "smiles/internal/errors"
	"smiles/internal/models"
	"smiles/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var adminActionMessages = map[string]string{
	services.ActionSendReminder:  "Reminder email sent",
	services.ActionResetCreation: "Dashboard link reset and emailed",
	services.ActionResetPage:     "Creation link reset and emailed",
	services.ActionDeleteUser:    "User deleted",
	services.ActionAllowUser:     "User allowed and creation link emailed",
}

// AdminUsers lists every sender with their message and smile totals
func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.svc.Admin.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users, "count": len(users)})
}

// AdminAction runs one of the admin lifecycle actions against the sender with the given email
func (h *Handler) AdminAction(c *gin.Context) {
	action := c.Param("action")
	if _, ok := adminActionMessages[action]; !ok {
		h.respondAdminError(c, appErr.Newf(appErr.ErrNotFound, "Unknown action %q", action))
		return
	}

	var req models.AdminActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.svc.Admin.Perform(c.Request.Context(), action, req.Email); err != nil {
		h.respondAdminError(c, err)
		return
	}

	h.log.Info("Admin action performed",
		zap.String("action", action),
		zap.String("email", req.Email),
		zap.String("admin", c.GetString("admin_subject")),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": adminActionMessages[action]})
}

// respondAdminError mirrors the error as "message" for the admin page, which reads that key
func (h *Handler) respondAdminError(c *gin.Context, err error) {
	status := statusFor(err)
	message := appErr.Message(err, "Action failed")

	switch {
	case errors.Is(err, appErr.ErrDelivery):
		h.log.Warn("Admin action email failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "The change was saved but the email could not be sent"
	case status >= http.StatusInternalServerError:
		h.log.Error("Admin action failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "Action failed"
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "error": message, "message": message})
}
