package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appErr "smiles/internal/errors"
	"smiles/internal/metrics"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SignupResult is what a signup hands back to the caller
type SignupResult struct {
	SenderID     uint   `json:"sender_id"`
	DashboardURL string `json:"dashboard_url"`
	IsExisting   bool   `json:"is_existing"`
}

type SignupService struct {
	db     *gorm.DB
	email  *EmailService
	tokens TokenSource
	log    *zap.Logger
}

func NewSignupService(db *gorm.DB, email *EmailService, tokens TokenSource, log *zap.Logger) *SignupService {
	return &SignupService{db: db, email: email, tokens: tokens, log: log}
}

// CreateUser registers a sender, or recognizes an existing one and re-sends their dashboard link
func (s *SignupService) CreateUser(ctx context.Context, name, email, avatar string) (*SignupResult, error) {
	name = strings.TrimSpace(name)
	avatar = strings.TrimSpace(avatar)
	email = normalizeEmail(email)

	if name == "" {
		return nil, appErr.Validation("Name is required")
	}
	if !isValidEmail(email) {
		return nil, appErr.Validation("Please enter a valid email address")
	}
	if avatar == "" {
		return nil, appErr.Validation("Please choose an avatar")
	}

	var existing models.Sender
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}
	if err == nil && existing.HasDashboard() {
		if err := s.email.SendAlreadyRegisteredEmail(ctx, &existing); err != nil {
			s.log.Warn("Could not send already-registered email", zap.String("email", email), zap.Error(err))
		}
		metrics.SignupsTotal.WithLabelValues("existing").Inc()
		return &SignupResult{SenderID: existing.ID, DashboardURL: existing.DashboardToken(), IsExisting: true}, nil
	}

	sender := &models.Sender{Name: name, Email: email, Avatar: avatar}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveNewSender(tx, s.tokens, sender)
	}); err != nil {
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// The account exists now; a failed welcome email must not undo it
	if err := s.email.SendWelcomeEmail(ctx, sender); err != nil {
		s.log.Warn("Signup succeeded but welcome email failed", zap.Uint("sender_id", sender.ID), zap.Error(err))
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	s.log.Info("Sender signed up", zap.Uint("sender_id", sender.ID), zap.String("email", email))

	return &SignupResult{SenderID: sender.ID, DashboardURL: sender.DashboardToken()}, nil
}

// ConfirmEmail marks the sender holding token as confirmed. Confirming twice is a no-op
// that reports alreadyConfirmed.
func (s *SignupService) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, appErr.New(appErr.ErrInvalidToken, "Invalid confirmation link")
	}

	var sender models.Sender
	if err := s.db.WithContext(ctx).Where("email_confirmation_token = ?", token).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, appErr.New(appErr.ErrInvalidToken, "Invalid confirmation link")
		}
		return false, fmt.Errorf("failed to look up confirmation token: %w", err)
	}

	if sender.EmailConfirmed {
		return true, nil
	}

	now := time.Now()
	// Page senders become active when they publish, not when they confirm
	result := s.db.WithContext(ctx).Model(&models.Sender{}).
		Where("id = ? AND email_confirmed = ?", sender.ID, false).
		Updates(map[string]interface{}{
			"email_confirmed": true,
			"status":          gorm.Expr("CASE WHEN creation_url IS NULL THEN ? ELSE status END", string(models.StatusActive)),
			"activated_at":    gorm.Expr("COALESCE(activated_at, ?)", now),
			"last_activity":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to confirm email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return true, nil
	}

	s.log.Info("Sender confirmed email", zap.Uint("sender_id", sender.ID))
	return false, nil
}
