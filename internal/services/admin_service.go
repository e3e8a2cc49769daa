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

// Admin actions accepted by POST /api/admin/:action
const (
	ActionSendReminder  = "send-reminder"
	ActionResetCreation = "reset-creation"
	ActionResetPage     = "reset-page"
	ActionDeleteUser    = "delete-user"
	ActionAllowUser     = "allow-user"
)

type AdminService struct {
	db     *gorm.DB
	email  *EmailService
	tokens TokenSource
	log    *zap.Logger
}

func NewAdminService(db *gorm.DB, email *EmailService, tokens TokenSource, log *zap.Logger) *AdminService {
	return &AdminService{db: db, email: email, tokens: tokens, log: log}
}

// Perform dispatches an admin action by name
func (s *AdminService) Perform(ctx context.Context, action, email string) error {
	switch action {
	case ActionSendReminder:
		return s.SendReminder(ctx, email)
	case ActionResetCreation:
		_, err := s.ResetDashboardURL(ctx, email)
		return err
	case ActionResetPage:
		_, err := s.ResetCreationURL(ctx, email)
		return err
	case ActionDeleteUser:
		return s.DeleteUser(ctx, email)
	case ActionAllowUser:
		_, err := s.AllowUser(ctx, email)
		return err
	default:
		return appErr.Newf(appErr.ErrNotFound, "Unknown action %q", action)
	}
}

// ListUsers returns every sender with message and smile totals, newest first
func (s *AdminService) ListUsers(ctx context.Context) ([]models.SenderSummary, error) {
	var users []models.SenderSummary
	if err := s.db.WithContext(ctx).
		Model(&models.Sender{}).
		Select("senders.*, COUNT(messages.id) AS message_count, COUNT(messages.smiled_at) AS smiles_created").
		Joins("LEFT JOIN messages ON messages.sender_id = senders.id").
		Group("senders.id").
		Order("senders.created_at DESC, senders.id DESC").
		Scan(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *AdminService) findSender(tx *gorm.DB, email string) (*models.Sender, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, appErr.Validation("Please enter a valid email address")
	}

	var sender models.Sender
	if err := tx.Where("email = ?", email).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("User")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &sender, nil
}

// SendReminder re-sends whichever email the sender still has to act on. Nothing is changed.
func (s *AdminService) SendReminder(ctx context.Context, email string) error {
	sender, err := s.findSender(s.db.WithContext(ctx), email)
	if err != nil {
		return err
	}

	switch {
	case sender.Status == models.StatusWaitlist:
		return appErr.Conflict("User is still on the waitlist, allow them first")
	case sender.Status == models.StatusInactive && sender.CreationToken() != "":
		err = s.email.SendCreationLinkEmail(ctx, sender)
	case !sender.HasDashboard():
		return appErr.Conflict("User has no dashboard yet")
	case !sender.EmailConfirmed:
		err = s.email.SendConfirmationOnlyEmail(ctx, sender)
	default:
		err = s.email.SendDashboardReminderEmail(ctx, sender)
	}
	if err != nil {
		return err
	}

	s.log.Info("Admin sent reminder", zap.Uint("sender_id", sender.ID))
	return nil
}

// ResetDashboardURL rotates the dashboard link and emails the new one. The old link stops working at once.
func (s *AdminService) ResetDashboardURL(ctx context.Context, email string) (string, error) {
	var sender *models.Sender
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sender, err = s.findSender(tx, email)
		if err != nil {
			return err
		}
		if !sender.HasDashboard() {
			return appErr.Conflict("User has no dashboard yet")
		}

		token, err := uniqueToken(tx, &models.Sender{}, "dashboard_url", s.tokens.Hex)
		if err != nil {
			return err
		}
		if err := tx.Model(sender).Update("dashboard_url", token).Error; err != nil {
			return fmt.Errorf("failed to rotate dashboard link: %w", err)
		}
		sender.DashboardURL = &token
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("Admin rotated dashboard link", zap.Uint("sender_id", sender.ID))
	return sender.DashboardToken(), s.email.SendNewDashboardLinkEmail(ctx, sender)
}

// ResetCreationURL rotates the happiness page creation link and emails the new one
func (s *AdminService) ResetCreationURL(ctx context.Context, email string) (string, error) {
	var sender *models.Sender
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sender, err = s.findSender(tx, email)
		if err != nil {
			return err
		}
		if sender.Status == models.StatusWaitlist {
			return appErr.Conflict("User is still on the waitlist, allow them first")
		}

		token, err := uniqueToken(tx, &models.Sender{}, "creation_url", s.tokens.Hex)
		if err != nil {
			return err
		}
		if err := tx.Model(sender).Update("creation_url", token).Error; err != nil {
			return fmt.Errorf("failed to rotate creation link: %w", err)
		}
		sender.CreationURL = &token
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("Admin rotated creation link", zap.Uint("sender_id", sender.ID))
	return sender.CreationToken(), s.email.SendNewCreationLinkEmail(ctx, sender)
}

// AllowUser moves a waitlisted email to inactive, gives it a creation link and page defaults,
// and emails the link
func (s *AdminService) AllowUser(ctx context.Context, email string) (string, error) {
	var sender *models.Sender
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sender, err = s.findSender(tx, email)
		if err != nil {
			return err
		}
		if sender.Status != models.StatusWaitlist {
			return appErr.Conflict("User is not on the waitlist")
		}

		token, err := uniqueToken(tx, &models.Sender{}, "creation_url", s.tokens.Hex)
		if err != nil {
			return err
		}
		sender.CreationURL = &token
		if err := applyPageDefaults(tx, sender); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(sender).Updates(map[string]interface{}{
			"status":            models.StatusInactive,
			"creation_url":      token,
			"slug":              sender.SlugValue(),
			"theme":             sender.Theme,
			"overall_message":   sender.OverallMessage,
			"not_found_message": sender.NotFoundMessage,
			"last_activity":     now,
		}).Error; err != nil {
			if isDuplicateKey(err) {
				return appErr.Conflict("Could not reserve a unique page for this user")
			}
			return fmt.Errorf("failed to allow user: %w", err)
		}
		sender.Status = models.StatusInactive
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("Admin allowed waitlisted user", zap.Uint("sender_id", sender.ID))
	return sender.CreationToken(), s.email.SendCreationLinkEmail(ctx, sender)
}

// DeleteUser hard-deletes a sender with their messages and notification records
func (s *AdminService) DeleteUser(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := s.findSender(tx, email)
		if err != nil {
			return err
		}

		if err := tx.Where("sender_id = ?", sender.ID).Delete(&models.EmailNotification{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}
		if err := tx.Where("sender_id = ?", sender.ID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Where("email = ?", sender.Email).Delete(&models.Waitlist{}).Error; err != nil {
			return fmt.Errorf("failed to delete waitlist entry: %w", err)
		}
		if err := tx.Delete(sender).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		s.log.Info("Admin deleted user", zap.Uint("sender_id", sender.ID))
		return nil
	})
}
