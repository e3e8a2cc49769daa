package handlers

import (
	"net/http"
	"strconv"

	appErr "smiles/internal/errors"
	"smiles/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ViewMessage returns what a recipient sees behind a message link and records the first view
func (h *Handler) ViewMessage(c *gin.Context) {
	ctx := c.Request.Context()
	messageURL := c.Param("message_url")

	message, err := h.svc.Messages.GetByURL(ctx, messageURL)
	if err != nil {
		h.respondError(c, err, "Failed to load message")
		return
	}

	if err := h.svc.Messages.RecordView(ctx, messageURL); err != nil {
		h.log.Warn("Could not record message view", zap.String("message_url", messageURL), zap.Error(err))
	}

	body := gin.H{
		"success": true,
		"message": gin.H{
			"id":             message.ID,
			"recipient_name": message.RecipientName,
			"message":        message.Text,
			"message_url":    message.MessageURL,
			"sent_at":        message.SentAt,
			"smiled":         message.SmiledAt != nil,
		},
	}
	if message.Sender != nil {
		body["sender"] = gin.H{
			"id":     message.Sender.ID,
			"name":   message.Sender.Name,
			"avatar": message.Sender.Avatar,
		}
	}
	c.JSON(http.StatusOK, body)
}

// SmileMessage records the recipient's smile. Repeats succeed without counting twice.
func (h *Handler) SmileMessage(c *gin.Context) {
	firstSmile, err := h.svc.Messages.MarkSmiled(c.Request.Context(), c.Param("message_url"))
	if err != nil {
		h.respondError(c, err, "Failed to record smile")
		return
	}

	count, err := h.svc.Stats.GlobalSmileCount(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"first_smile": firstSmile,
		"smile_count": count,
	})
}

// QuickSend lets a recipient send a smile back without visiting a dashboard first
func (h *Handler) QuickSend(c *gin.Context) {
	var req models.QuickSendRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.QuickSend.QuickSend(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "Failed to send smile")
		return
	}

	body := gin.H{
		"success":       true,
		"existing_user": result.ExistingUser,
		"message_url":   result.MessageURL,
		"email_sent":    result.EmailSent,
	}
	// An existing sender's dashboard link only ever travels by email
	if !result.ExistingUser {
		body["dashboard_url"] = result.DashboardURL
	}
	c.JSON(http.StatusCreated, body)
}

// DeleteMessage removes a message owned by the sender behind ?dashboard_url=
func (h *Handler) DeleteMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.respondError(c, appErr.Validation("Invalid message ID"), "Failed to delete message")
		return
	}

	dashboardURL := c.Query("dashboard_url")
	if dashboardURL == "" {
		h.respondError(c, appErr.Validation("dashboard_url is required"), "Failed to delete message")
		return
	}

	if err := h.svc.Messages.DeleteMessage(c.Request.Context(), uint(id), dashboardURL); err != nil {
		h.respondError(c, err, "Failed to delete message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}

// LookupMessages lists a sender's other messages to the given recipient email
func (h *Handler) LookupMessages(c *gin.Context) {
	senderID, err := strconv.ParseUint(c.Param("sender_id"), 10, 64)
	if err != nil || senderID == 0 {
		h.respondError(c, appErr.Validation("Invalid sender ID"), "Failed to look up messages")
		return
	}

	var req models.LookupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	messages, err := h.svc.Messages.OtherMessagesBySender(c.Request.Context(), uint(senderID), req.Email)
	if err != nil {
		h.respondError(c, err, "Failed to look up messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages, "count": len(messages)})
}
