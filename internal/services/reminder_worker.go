package services

import (
	"context"
	"fmt"
	"time"

	"smiles/internal/config"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReminderWorker nudges unconfirmed senders who already sent smiles to confirm their email.
// Each sender is reminded once.
type ReminderWorker struct {
	db       *gorm.DB
	email    *EmailService
	interval time.Duration
	after    time.Duration
	log      *zap.Logger
}

func NewReminderWorker(db *gorm.DB, email *EmailService, cfg config.Reminder, log *zap.Logger) *ReminderWorker {
	return &ReminderWorker{
		db:       db,
		email:    email,
		interval: cfg.Interval,
		after:    cfg.After,
		log:      log.Named("reminder"),
	}
}

// Start runs the worker until ctx is cancelled
func (w *ReminderWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Warn("Reminder worker disabled, interval must be positive", zap.Duration("interval", w.interval))
		return
	}
	go w.run(ctx)
}

func (w *ReminderWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Reminder worker stopped")
			return
		case <-ticker.C:
			if _, err := w.runOnce(ctx, time.Now()); err != nil {
				w.log.Error("Reminder run failed", zap.Error(err))
			}
		}
	}
}

// runOnce reminds every due sender and returns how many emails went out
func (w *ReminderWorker) runOnce(ctx context.Context, now time.Time) (int, error) {
	var senders []models.Sender
	if err := w.db.WithContext(ctx).
		Where("email_confirmed = ? AND dashboard_url IS NOT NULL AND created_at <= ?", false, now.Add(-w.after)).
		Where("EXISTS (SELECT 1 FROM messages WHERE messages.sender_id = senders.id)").
		Where("NOT EXISTS (SELECT 1 FROM email_notifications n WHERE n.sender_id = senders.id AND n.notification_type = ?)", models.NotificationConfirmationReminder).
		Find(&senders).Error; err != nil {
		return 0, fmt.Errorf("failed to find senders due a reminder: %w", err)
	}

	sent := 0
	for i := range senders {
		sender := &senders[i]
		if err := w.email.SendConfirmationOnlyEmail(ctx, sender); err != nil {
			w.log.Warn("Failed to send confirmation reminder", zap.Uint("sender_id", sender.ID), zap.Error(err))
			continue
		}

		if err := w.db.WithContext(ctx).Create(&models.EmailNotification{
			SenderID:         sender.ID,
			RecipientEmail:   sender.Email,
			NotificationType: models.NotificationConfirmationReminder,
			Metadata:         datatypes.JSONMap{"channel": w.email.Channel()},
			CreatedAt:        now,
		}).Error; err != nil {
			return sent, fmt.Errorf("failed to record reminder for sender %d: %w", sender.ID, err)
		}
		sent++
	}

	if sent > 0 {
		w.log.Info("Sent confirmation reminders", zap.Int("count", sent))
	}
	return sent, nil
}
