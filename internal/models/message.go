package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a smile sent to a recipient through a unique link
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SenderID       uint       `gorm:"not null;index:idx_messages_sender_recipient" json:"sender_id"`
	RecipientName  string     `gorm:"size:100" json:"recipient_name"`
	RecipientEmail string     `gorm:"size:255;not null;index:idx_messages_sender_recipient" json:"recipient_email"`
	Text           string     `gorm:"column:message;type:text;not null" json:"message"`
	Emotion        string     `gorm:"size:32" json:"emotion,omitempty"`
	MessageURL     string     `gorm:"uniqueIndex;size:32;not null" json:"message_url"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ViewedAt       *time.Time `json:"viewed_at,omitempty"`
	SmiledAt       *time.Time `gorm:"index" json:"smiled_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`

	// Relationships
	Sender *Sender `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
}

// BeforeCreate hook is called before creating a new message
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// HasSmiled reports whether the recipient already reacted
func (m *Message) HasSmiled() bool {
	return m.SmiledAt != nil
}

// SendMessageRequest represents the data needed to send a message from a dashboard
type SendMessageRequest struct {
	RecipientName  string `json:"recipient_name" form:"recipient_name" binding:"required,max=100"`
	RecipientEmail string `json:"recipient_email" form:"recipient_email" binding:"required,email"`
	Message        string `json:"message" form:"message" binding:"required,max=1000"`
}

// QuickSendRequest lets a recipient sign up and reply in one step
type QuickSendRequest struct {
	SenderName     string `json:"sender_name" form:"sender_name" binding:"required,max=100"`
	SenderEmail    string `json:"sender_email" form:"sender_email" binding:"required,email"`
	RecipientName  string `json:"recipient_name" form:"recipient_name" binding:"required,max=100"`
	RecipientEmail string `json:"recipient_email" form:"recipient_email" binding:"required,email"`
	Message        string `json:"message" form:"message" binding:"required,max=1000"`
}

// LookupRequest asks for a sender's messages addressed to one recipient
type LookupRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
}
