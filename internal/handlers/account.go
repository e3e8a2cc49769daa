package handlers

import (
	"fmt"
	"html"
	"net/http"

	"smiles/internal/models"
	"smiles/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const confirmPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 40px;">
<h1>%s</h1>
<p>%s</p>
<p><a href="%s">Back to One Trillion Smiles</a></p>
</body>
</html>`

// Signup registers a new sender. Existing senders get their dashboard link by email only.
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Signup.CreateUser(c.Request.Context(), req.Name, req.Email, req.Avatar)
	if err != nil {
		h.respondError(c, err, "Failed to create account")
		return
	}

	if result.IsExisting {
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"is_existing": true,
			"message":     "You already have a dashboard! We've emailed you the link.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"is_existing":   false,
		"sender_id":     result.SenderID,
		"dashboard_url": result.DashboardURL,
		"message":       "Check your email to confirm your address.",
	})
}

// ConfirmEmail renders a small HTML page since people land here from their inbox
func (h *Handler) ConfirmEmail(c *gin.Context) {
	alreadyConfirmed, err := h.svc.Signup.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Failed to confirm email", zap.Error(err))
			h.renderPage(c, status, "Something went wrong", "We couldn't confirm your email right now. Please try again later.")
			return
		}
		h.renderPage(c, status, "Link not valid", "This confirmation link is invalid or has been replaced.")
		return
	}

	if alreadyConfirmed {
		h.renderPage(c, http.StatusOK, "Already confirmed", "Your email was already confirmed. Keep spreading smiles!")
		return
	}
	h.renderPage(c, http.StatusOK, "Email confirmed!", "Thanks for confirming. You can now send as many smiles as you like.")
}

func (h *Handler) renderPage(c *gin.Context, status int, title, body string) {
	page := fmt.Sprintf(confirmPageTemplate,
		html.EscapeString(title),
		html.EscapeString(title),
		html.EscapeString(body),
		html.EscapeString(h.cfg.BaseURL+"/"),
	)
	c.Data(status, "text/html; charset=utf-8", []byte(page))
}

// JoinWaitlist adds an email to the happiness page waitlist
func (h *Handler) JoinWaitlist(c *gin.Context) {
	var req models.WaitlistRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.svc.Pages.AddToWaitlist(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err, "Failed to join waitlist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "You're on the list! We'll email you when your page is ready.",
	})
}

// Dashboard returns the sender behind the private link with their sent messages
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	sender, err := h.svc.Senders.GetByDashboardURL(ctx, c.Param("dashboard_url"))
	if err != nil {
		h.respondError(c, err, "Failed to load dashboard")
		return
	}

	messages, err := h.svc.Messages.ListBySender(ctx, sender.ID)
	if err != nil {
		h.respondError(c, err, "Failed to load messages")
		return
	}
	smiles, err := h.svc.Stats.SenderSmileCount(ctx, sender.ID)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	decision, err := h.svc.Messages.CanSend(ctx, sender.ID)
	if err != nil {
		h.respondError(c, err, "Failed to load dashboard")
		return
	}

	body := gin.H{
		"success":       true,
		"sender":        sender,
		"messages":      messages,
		"message_count": len(messages),
		"smile_count":   smiles,
		"can_send":      decision,
	}
	if !sender.EmailConfirmed {
		remaining := services.UnconfirmedMessageLimit - len(messages)
		if remaining < 0 {
			remaining = 0
		}
		body["remaining_unconfirmed"] = remaining
	}
	if domain, ok := services.CompanyFromEmail(sender.Email); ok {
		body["company"] = domain
	}

	c.JSON(http.StatusOK, body)
}

// SendMessage creates a smile from the dashboard
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	sender, err := h.svc.Senders.GetByDashboardURL(ctx, c.Param("dashboard_url"))
	if err != nil {
		h.respondError(c, err, "Failed to send message")
		return
	}

	var req models.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	created, err := h.svc.Messages.CreateMessage(ctx, sender.ID, req.RecipientName, req.RecipientEmail, req.Message)
	if err != nil {
		h.respondError(c, err, "Failed to send message")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message_id":  created.ID,
		"message_url": created.MessageURL,
		"email_sent":  created.EmailSent,
	})
}
