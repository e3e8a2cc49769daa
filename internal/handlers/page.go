package handlers

import (
	"net/http"

	"smiles/internal/models"
	"smiles/internal/services"

	"github.com/gin-gonic/gin"
)

// CreationPage returns the page editor behind a private creation link
func (h *Handler) CreationPage(c *gin.Context) {
	editor, err := h.svc.Pages.GetEditor(c.Request.Context(), c.Param("creation_url"))
	if err != nil {
		h.respondError(c, err, "Failed to load creation page")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sender":   editor.Sender,
		"messages": editor.Messages,
		"themes":   services.Themes(),
	})
}

// SaveCreationPage saves settings and drafts, and publishes them when asked
func (h *Handler) SaveCreationPage(c *gin.Context) {
	var req models.SavePageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Pages.SavePage(c.Request.Context(), c.Param("creation_url"), req)
	if err != nil {
		h.respondError(c, err, "Failed to save page")
		return
	}

	body := gin.H{
		"success":        true,
		"slug":           result.Slug,
		"saved_messages": result.SavedMessages,
		"invites_sent":   result.InvitesSent,
	}
	if result.Slug != "" {
		body["page_url"] = h.cfg.BaseURL + "/p/" + result.Slug
	}
	c.JSON(http.StatusOK, body)
}

// HappinessPage shows a published page. Visitors find their message through the lookup endpoint.
func (h *Handler) HappinessPage(c *gin.Context) {
	page, err := h.svc.Pages.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err, "Failed to load page")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"page": gin.H{
			"sender_id":         page.Sender.ID,
			"name":              page.Sender.Name,
			"avatar":            page.Sender.Avatar,
			"slug":              page.Sender.SlugValue(),
			"theme":             page.Sender.Theme,
			"theme_color":       page.ThemeColor,
			"overall_message":   page.Sender.OverallMessage,
			"not_found_message": page.Sender.NotFoundMessage,
		},
	})
}

func (h *Handler) Themes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "themes": services.Themes()})
}
