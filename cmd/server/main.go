package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smiles/internal/config"
	"smiles/internal/database"
	"smiles/internal/handlers"
	"smiles/internal/logger"
	"smiles/internal/metrics"
	"smiles/internal/middleware"
	"smiles/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout      = 10 * time.Second
	limiterSweepInterval = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zapLog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zapLog.Sync()

	db, err := database.Open(cfg.Database, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to initialize database", zap.Error(err))
	}

	metrics.Register()

	mailer, devLog := services.NewMailer(cfg, zapLog)
	email := services.NewEmailService(mailer, cfg.BaseURL, zapLog)
	tokens := services.DefaultTokenSource()
	stats := services.NewStatsService(db, zapLog)
	messages := services.NewMessageService(db, email, stats, tokens, zapLog)

	h, err := handlers.New(cfg, handlers.Services{
		Senders:   services.NewSenderService(db, zapLog),
		Signup:    services.NewSignupService(db, email, tokens, zapLog),
		Messages:  messages,
		Stats:     stats,
		Admin:     services.NewAdminService(db, email, tokens, zapLog),
		Pages:     services.NewPageService(db, email, tokens, zapLog),
		QuickSend: services.NewQuickSendService(db, email, messages, tokens, zapLog),
		DevLog:    devLog,
	}, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to set up handlers", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		zapLog.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger(zapLog))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Per-IP throttle for the endpoints that create rows or send email
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	limiter.StartSweeper(ctx, limiterSweepInterval)

	h.RegisterRoutes(router, limiter.Middleware())

	services.NewReminderWorker(db, email, cfg.Reminder, zapLog).Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("mailer", email.Channel()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Graceful shutdown failed", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
