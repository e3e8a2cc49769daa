package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	appErr "smiles/internal/errors"
	"smiles/internal/metrics"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var quickSendAvatars = []string{"😊", "😄", "🎉", "✨", "💛", "🌟", "🚀", "🎈", "🌈", "⭐"}

type QuickSendResult struct {
	DashboardURL string `json:"dashboard_url"`
	ExistingUser bool   `json:"existing_user"`
	MessageURL   string `json:"message_url"`
	EmailSent    bool   `json:"email_sent"`
}

// QuickSendService lets a recipient reply with a smile of their own, creating their account on the way
type QuickSendService struct {
	db       *gorm.DB
	email    *EmailService
	messages *MessageService
	tokens   TokenSource
	log      *zap.Logger
}

func NewQuickSendService(db *gorm.DB, email *EmailService, messages *MessageService, tokens TokenSource, log *zap.Logger) *QuickSendService {
	return &QuickSendService{db: db, email: email, messages: messages, tokens: tokens, log: log}
}

// QuickSend finds or creates the sender behind req.SenderEmail and sends their message
// under the same limit as the dashboard
func (s *QuickSendService) QuickSend(ctx context.Context, req models.QuickSendRequest) (*QuickSendResult, error) {
	senderName := strings.TrimSpace(req.SenderName)
	senderEmail := normalizeEmail(req.SenderEmail)
	if senderName == "" {
		return nil, appErr.Validation("Your name is required")
	}
	if !isValidEmail(senderEmail) {
		return nil, appErr.Validation("Please enter a valid email address")
	}
	if _, err := validateMessageInput(req.RecipientName, req.RecipientEmail, req.Message); err != nil {
		return nil, err
	}

	var sender models.Sender
	existing := true
	err := s.db.WithContext(ctx).Where("email = ?", senderEmail).First(&sender).Error
	switch {
	case err == nil && sender.HasDashboard():
	case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
		existing = false
		sender = models.Sender{
			Name:   senderName,
			Email:  senderEmail,
			Avatar: quickSendAvatars[rand.Intn(len(quickSendAvatars))],
		}
		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return saveNewSender(tx, s.tokens, &sender)
		}); err != nil {
			return nil, err
		}
		metrics.SignupsTotal.WithLabelValues("quick_send").Inc()

		if err := s.email.SendQuickSendWelcomeEmail(ctx, &sender); err != nil {
			s.log.Warn("Quick send account created but welcome email failed", zap.Uint("sender_id", sender.ID), zap.Error(err))
		}
	default:
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}

	created, err := s.messages.CreateMessage(ctx, sender.ID, req.RecipientName, req.RecipientEmail, req.Message)
	if err != nil {
		return nil, err
	}

	return &QuickSendResult{
		DashboardURL: sender.DashboardToken(),
		ExistingUser: existing,
		MessageURL:   created.MessageURL,
		EmailSent:    created.EmailSent,
	}, nil
}
