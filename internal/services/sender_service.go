package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErr "smiles/internal/errors"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SenderService looks senders up by the tokens that act as their credentials
type SenderService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSenderService(db *gorm.DB, log *zap.Logger) *SenderService {
	return &SenderService{db: db, log: log}
}

func (s *SenderService) GetByDashboardURL(ctx context.Context, dashboardURL string) (*models.Sender, error) {
	return s.findBy(ctx, "dashboard_url", dashboardURL, "Dashboard")
}

func (s *SenderService) GetByCreationURL(ctx context.Context, creationURL string) (*models.Sender, error) {
	return s.findBy(ctx, "creation_url", creationURL, "Creation page")
}

func (s *SenderService) GetByEmail(ctx context.Context, email string) (*models.Sender, error) {
	return s.findBy(ctx, "email", normalizeEmail(email), "User")
}

func (s *SenderService) GetByID(ctx context.Context, id uint) (*models.Sender, error) {
	var sender models.Sender
	if err := s.db.WithContext(ctx).First(&sender, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("Sender")
		}
		return nil, fmt.Errorf("failed to load sender: %w", err)
	}
	return &sender, nil
}

func (s *SenderService) findBy(ctx context.Context, column, value, resource string) (*models.Sender, error) {
	if value == "" {
		return nil, appErr.NotFound(resource)
	}

	var sender models.Sender
	if err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound(resource)
		}
		return nil, fmt.Errorf("failed to look up sender by %s: %w", column, err)
	}
	return &sender, nil
}

// saveNewSender gives sender fresh dashboard and confirmation tokens and stores it.
// A waitlist row holding the same email is upgraded in place instead of duplicated.
func saveNewSender(tx *gorm.DB, tokens TokenSource, sender *models.Sender) error {
	dashboardURL, err := uniqueToken(tx, &models.Sender{}, "dashboard_url", tokens.Hex)
	if err != nil {
		return err
	}
	confirmationToken, err := uniqueToken(tx, &models.Sender{}, "email_confirmation_token", tokens.Hex)
	if err != nil {
		return err
	}
	sender.DashboardURL = &dashboardURL
	sender.EmailConfirmationToken = &confirmationToken
	sender.EmailConfirmed = false

	var waiting models.Sender
	err = tx.Where("email = ?", sender.Email).First(&waiting).Error
	switch {
	case err == nil:
		if waiting.HasDashboard() {
			return appErr.Conflict("An account with this email already exists")
		}
		return upgradeWaitlistSender(tx, &waiting, sender)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("failed to check existing sender: %w", err)
	}

	sender.Status = models.StatusInactive
	if err := tx.Create(sender).Error; err != nil {
		if isDuplicateKey(err) {
			return appErr.Conflict("An account with this email already exists")
		}
		return fmt.Errorf("failed to create sender: %w", err)
	}
	return nil
}

func upgradeWaitlistSender(tx *gorm.DB, waiting, sender *models.Sender) error {
	status := waiting.Status
	if status == models.StatusWaitlist {
		status = models.StatusInactive
	}
	now := time.Now()

	if err := tx.Model(waiting).Updates(map[string]interface{}{
		"name":                     sender.Name,
		"avatar":                   sender.Avatar,
		"dashboard_url":            *sender.DashboardURL,
		"email_confirmation_token": *sender.EmailConfirmationToken,
		"email_confirmed":          false,
		"status":                   status,
		"last_activity":            now,
	}).Error; err != nil {
		if isDuplicateKey(err) {
			return appErr.Conflict("An account with this email already exists")
		}
		return fmt.Errorf("failed to upgrade waitlist sender: %w", err)
	}

	return tx.First(sender, waiting.ID).Error
}
