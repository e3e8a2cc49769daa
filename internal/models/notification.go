package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types recorded in email_notifications
const (
	NotificationMessage              = "message"
	NotificationPageInvite           = "page_invite"
	NotificationConfirmationReminder = "confirmation_reminder"
)

// EmailNotification records that an email already went out, so republishing does not resend it
type EmailNotification struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	SenderID         uint              `gorm:"not null;index:idx_notifications_dedup" json:"sender_id"`
	RecipientEmail   string            `gorm:"size:255;not null;index:idx_notifications_dedup" json:"recipient_email"`
	NotificationType string            `gorm:"size:32;not null;index:idx_notifications_dedup" json:"notification_type"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`

	Sender *Sender `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for the EmailNotification model
func (EmailNotification) TableName() string {
	return "email_notifications"
}
