package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"smiles/internal/auth"
	"smiles/internal/config"
	appErr "smiles/internal/errors"
	"smiles/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	homeTopCompanies  = 5
	statsLeaderboard  = 10
	maxLeaderboardLen = 100
)

// Services groups everything the HTTP layer calls into
type Services struct {
	Senders   *services.SenderService
	Signup    *services.SignupService
	Messages  *services.MessageService
	Stats     *services.StatsService
	Admin     *services.AdminService
	Pages     *services.PageService
	QuickSend *services.QuickSendService
	// DevLog is the development email log, nil in production
	DevLog *services.LogMailer
}

type Handler struct {
	cfg *config.Config
	svc Services
	log *zap.Logger
}

func New(cfg *config.Config, svc Services, log *zap.Logger) (*Handler, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	return &Handler{cfg: cfg, svc: svc, log: log}, nil
}

// RegisterRoutes mounts every route. throttle guards the public endpoints that create rows or send email.
func (h *Handler) RegisterRoutes(router *gin.Engine, throttle gin.HandlerFunc) {
	router.GET("/", h.Home)
	router.GET("/health", h.Health)

	// Sender lifecycle
	router.POST("/api/signup", throttle, h.Signup)
	router.GET("/confirm/:token", h.ConfirmEmail)
	router.POST("/api/waitlist", throttle, h.JoinWaitlist)
	router.GET("/dashboard/:dashboard_url", h.Dashboard)
	router.POST("/api/dashboard/:dashboard_url/send", h.SendMessage)

	// Messages
	router.GET("/s/:message_url", h.ViewMessage)
	router.POST("/api/messages/:message_url/smile", h.SmileMessage)
	router.POST("/api/messages/quick-send", throttle, h.QuickSend)
	router.DELETE("/api/messages/:id", h.DeleteMessage)
	router.POST("/api/sender/:sender_id/lookup", h.LookupMessages)

	// Happiness pages
	router.GET("/create/:creation_url", h.CreationPage)
	router.POST("/api/create/:creation_url", h.SaveCreationPage)
	router.GET("/p/:slug", h.HappinessPage)
	router.GET("/api/themes", h.Themes)

	// Stats
	router.GET("/api/stats", h.Stats)
	router.GET("/api/stats/companies/:domain", h.CompanyStats)

	// Admin
	router.POST("/api/admin/login", throttle, h.AdminLogin)
	admin := router.Group("")
	if h.cfg.Admin.Password != "" {
		admin.Use(auth.AdminMiddleware(h.cfg.Admin.JWTSecret))
	}
	{
		admin.GET("/admin", h.AdminUsers)
		admin.POST("/api/admin/:action", h.AdminAction)
	}

	// Development email log
	if !h.cfg.IsProduction() && h.svc.DevLog != nil {
		dev := router.Group("", localOnly())
		{
			dev.GET("/dev/emails", h.DevEmails)
			dev.POST("/api/dev/clear-emails", h.ClearDevEmails)
		}
	}
}

// Home returns the landing page numbers, plus one company's stats when ?company= is set
func (h *Handler) Home(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.svc.Stats.GlobalSmileCount(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	totalCompanies, err := h.svc.Stats.TotalCompanies(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	topCompanies, err := h.svc.Stats.TopCompanies(ctx, homeTopCompanies)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}

	body := gin.H{
		"success":         true,
		"smile_count":     count,
		"goal":            services.SmileGoal,
		"progress":        services.GlobalProgress(count),
		"total_companies": totalCompanies,
		"top_companies":   topCompanies,
	}

	if company := c.Query("company"); company != "" {
		stats, err := h.svc.Stats.CompanyStats(ctx, company, statsLeaderboard)
		if err != nil {
			h.respondError(c, err, "Failed to load company stats")
			return
		}
		body["company_stats"] = stats
	}

	c.JSON(http.StatusOK, body)
}

// Health is a simple liveness check
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, appErr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, appErr.ErrNotFound), errors.Is(err, appErr.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, appErr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, appErr.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, appErr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, appErr.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope. Server-side failures never leak their cause.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	message := appErr.Message(err, fallback)

	if status >= http.StatusInternalServerError {
		h.log.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		message = fallback
		if status == http.StatusBadGateway {
			message = "We couldn't send the email right now, please try again later"
		}
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "error": message})
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bindingMessage(err)})
		return false
	}
	return true
}

// leaderboardLimit reads ?limit= within [1, maxLeaderboardLen]
func leaderboardLimit(c *gin.Context) int {
	limit := statsLeaderboard
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxLeaderboardLen {
			limit = parsed
		}
	}
	return limit
}
