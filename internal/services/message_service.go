package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	appErr "smiles/internal/errors"
	"smiles/internal/metrics"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// UnconfirmedMessageLimit is how many messages a sender may create before confirming their email
	UnconfirmedMessageLimit = 3
	MaxMessageLength        = 1000

	RateLimitReason = "You've sent 3 Smiles! Please confirm your email to keep spreading smiles."
)

// SendDecision is the outcome of the unconfirmed-sender message limit
type SendDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type CreatedMessage struct {
	ID         uint   `json:"id"`
	MessageURL string `json:"message_url"`
	EmailSent  bool   `json:"email_sent"`
}

type MessageService struct {
	db     *gorm.DB
	email  *EmailService
	stats  *StatsService
	tokens TokenSource
	log    *zap.Logger
}

func NewMessageService(db *gorm.DB, email *EmailService, stats *StatsService, tokens TokenSource, log *zap.Logger) *MessageService {
	return &MessageService{db: db, email: email, stats: stats, tokens: tokens, log: log}
}

// CanSend reports whether senderID may create another message. Unknown senders are denied.
func (s *MessageService) CanSend(ctx context.Context, senderID uint) (*SendDecision, error) {
	var sender models.Sender
	if err := s.db.WithContext(ctx).First(&sender, senderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SendDecision{Reason: "Sender not found"}, nil
		}
		return nil, fmt.Errorf("failed to load sender: %w", err)
	}
	return decideSend(s.db.WithContext(ctx), &sender)
}

func decideSend(tx *gorm.DB, sender *models.Sender) (*SendDecision, error) {
	if sender.EmailConfirmed {
		return &SendDecision{Allowed: true}, nil
	}

	var count int64
	if err := tx.Model(&models.Message{}).Where("sender_id = ?", sender.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	if count >= UnconfirmedMessageLimit {
		return &SendDecision{Reason: RateLimitReason}, nil
	}
	return &SendDecision{Allowed: true}, nil
}

type messageInput struct {
	recipientName  string
	recipientEmail string
	text           string
}

func validateMessageInput(recipientName, recipientEmail, text string) (*messageInput, error) {
	in := &messageInput{
		recipientName:  strings.TrimSpace(recipientName),
		recipientEmail: normalizeEmail(recipientEmail),
		text:           strings.TrimSpace(text),
	}

	if in.recipientName == "" {
		return nil, appErr.Validation("Recipient name is required")
	}
	if !isValidEmail(in.recipientEmail) {
		return nil, appErr.Validation("Please enter a valid recipient email address")
	}
	if in.text == "" {
		return nil, appErr.Validation("Message is required")
	}
	if utf8.RuneCountInString(in.text) > MaxMessageLength {
		return nil, appErr.Newf(appErr.ErrValidation, "Message must be %d characters or fewer", MaxMessageLength)
	}
	return in, nil
}

// CreateMessage stores a message and emails its link to the recipient. The send limit is
// checked and the message inserted in one transaction holding the sender row.
func (s *MessageService) CreateMessage(ctx context.Context, senderID uint, recipientName, recipientEmail, text string) (*CreatedMessage, error) {
	in, err := validateMessageInput(recipientName, recipientEmail, text)
	if err != nil {
		return nil, err
	}

	var (
		sender   models.Sender
		message  models.Message
		decision *SendDecision
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sender, senderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.NotFound("Sender")
			}
			return fmt.Errorf("failed to lock sender: %w", err)
		}

		decision, err = decideSend(tx, &sender)
		if err != nil || !decision.Allowed {
			return err
		}

		messageURL, err := uniqueToken(tx, &models.Message{}, "message_url", s.tokens.Base62)
		if err != nil {
			return err
		}

		now := time.Now()
		message = models.Message{
			SenderID:       sender.ID,
			RecipientName:  in.recipientName,
			RecipientEmail: in.recipientEmail,
			Text:           in.text,
			MessageURL:     messageURL,
			SentAt:         &now,
		}
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		return tx.Model(&models.Sender{}).Where("id = ?", sender.ID).Update("last_activity", now).Error
	})
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		metrics.RateLimitDenialsTotal.Inc()
		// Denial is never silent: the sender gets their confirmation link again
		if !sender.EmailConfirmed {
			if err := s.email.SendConfirmationOnlyEmail(ctx, &sender); err != nil {
				s.log.Warn("Could not re-send confirmation email", zap.Uint("sender_id", sender.ID), zap.Error(err))
			}
		}
		return nil, appErr.RateLimited(decision.Reason)
	}

	metrics.MessagesCreatedTotal.Inc()

	result := &CreatedMessage{ID: message.ID, MessageURL: message.MessageURL}
	if err := s.email.SendSmileNotificationEmail(ctx, sender.Name, message.RecipientName, message.RecipientEmail, message.MessageURL); err != nil {
		s.log.Warn("Message stored but notification email failed", zap.String("message_url", message.MessageURL), zap.Error(err))
		return result, nil
	}
	result.EmailSent = true

	notification := models.EmailNotification{
		SenderID:         sender.ID,
		RecipientEmail:   message.RecipientEmail,
		NotificationType: models.NotificationMessage,
		Metadata: datatypes.JSONMap{
			"message_url": message.MessageURL,
			"channel":     s.email.Channel(),
		},
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		s.log.Warn("Could not record message notification", zap.String("message_url", message.MessageURL), zap.Error(err))
	}

	return result, nil
}

// GetByURL loads a sent message together with its sender. Unpublished page drafts are not found.
func (s *MessageService) GetByURL(ctx context.Context, messageURL string) (*models.Message, error) {
	var message models.Message
	if err := s.db.WithContext(ctx).Preload("Sender").Where("message_url = ? AND sent_at IS NOT NULL", messageURL).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("Message")
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &message, nil
}

// ListBySender returns a sender's messages, newest first
func (s *MessageService) ListBySender(ctx context.Context, senderID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at DESC, id DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *MessageService) CountBySender(ctx context.Context, senderID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Where("sender_id = ?", senderID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// OtherMessagesBySender returns what senderID has sent to recipientEmail, latest first
func (s *MessageService) OtherMessagesBySender(ctx context.Context, senderID uint, recipientEmail string) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_email = ?", senderID, normalizeEmail(recipientEmail)).
		Order("sent_at DESC, id DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to look up messages: %w", err)
	}
	return messages, nil
}

// RecordView stamps viewed_at the first time a message is opened
func (s *MessageService) RecordView(ctx context.Context, messageURL string) error {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("message_url = ? AND sent_at IS NOT NULL AND viewed_at IS NULL", messageURL).
		Update("viewed_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to record view: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Where("message_url = ? AND sent_at IS NOT NULL", messageURL).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if count == 0 {
		return appErr.NotFound("Message")
	}
	return nil
}

// MarkSmiled records the recipient's smile. Only the first call on a message counts;
// it bumps the global counter and the sender's ledger in the same transaction.
func (s *MessageService) MarkSmiled(ctx context.Context, messageURL string) (firstSmile bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.Select("id", "sender_id", "smiled_at").Where("message_url = ? AND sent_at IS NOT NULL", messageURL).First(&message).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.NotFound("Message")
			}
			return fmt.Errorf("failed to load message: %w", err)
		}
		if message.HasSmiled() {
			return nil
		}

		now := time.Now()
		result := tx.Model(&models.Message{}).
			Where("id = ? AND smiled_at IS NULL", message.ID).
			Update("smiled_at", now)
		if result.Error != nil {
			return fmt.Errorf("failed to mark message smiled: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := s.stats.IncrementSmileCount(tx, now); err != nil {
			return err
		}
		if err := tx.Model(&models.Sender{}).
			Where("id = ?", message.SenderID).
			Update("smile_count", gorm.Expr("smile_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to update sender smile count: %w", err)
		}

		firstSmile = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if firstSmile {
		metrics.SmilesTotal.Inc()
	}
	return firstSmile, nil
}

// DeleteMessage removes a message owned by the sender holding dashboardURL.
// Smile counters are ledgers and are left untouched.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID uint, dashboardURL string) error {
	if dashboardURL == "" {
		return appErr.NotFound("Message")
	}

	var sender models.Sender
	if err := s.db.WithContext(ctx).Select("id").Where("dashboard_url = ?", dashboardURL).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("Message")
		}
		return fmt.Errorf("failed to load sender: %w", err)
	}

	result := s.db.WithContext(ctx).Where("id = ? AND sender_id = ?", messageID, sender.ID).Delete(&models.Message{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErr.NotFound("Message")
	}

	s.log.Info("Message deleted", zap.Uint("message_id", messageID), zap.Uint("sender_id", sender.ID))
	return nil
}
