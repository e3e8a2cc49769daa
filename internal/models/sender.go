package models

import (
	"time"

	"gorm.io/gorm"
)

// SenderStatus tracks where a sender is in the signup lifecycle
type SenderStatus string

const (
	StatusWaitlist SenderStatus = "waitlist"
	StatusInactive SenderStatus = "inactive"
	StatusActive   SenderStatus = "active"
)

// Sender is a registered user who sends smiles. The dashboard URL is their only credential.
type Sender struct {
	ID                     uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                   string       `gorm:"size:100" json:"name"`
	Email                  string       `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Avatar                 string       `gorm:"size:32" json:"avatar"`
	DashboardURL           *string      `gorm:"uniqueIndex;size:64" json:"-"`
	EmailConfirmed         bool         `gorm:"not null;default:false" json:"email_confirmed"`
	EmailConfirmationToken *string      `gorm:"uniqueIndex;size:64" json:"-"`
	Slug                   *string      `gorm:"uniqueIndex;size:64" json:"slug,omitempty"`
	CreationURL            *string      `gorm:"uniqueIndex;size:64" json:"-"`
	Status                 SenderStatus `gorm:"size:16;not null;default:'inactive';index" json:"status"`
	Theme                  string       `gorm:"size:32" json:"theme,omitempty"`
	OverallMessage         string       `gorm:"type:text" json:"overall_message,omitempty"`
	NotFoundMessage        string       `gorm:"type:text" json:"not_found_message,omitempty"`
	SmileCount             int64        `gorm:"not null;default:0" json:"smile_count"`
	CreatedAt              time.Time    `gorm:"not null;index" json:"created_at"`
	ActivatedAt            *time.Time   `json:"activated_at,omitempty"`
	LastActivity           *time.Time   `json:"last_activity,omitempty"`
}

// BeforeCreate hook is called before creating a new sender
func (s *Sender) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity == nil {
		s.LastActivity = &now
	}
	if s.Status == "" {
		s.Status = StatusInactive
	}
	return nil
}

// TableName specifies the table name for the Sender model
func (Sender) TableName() string {
	return "senders"
}

// DashboardToken returns the dashboard token or "" for waitlist entries
func (s *Sender) DashboardToken() string {
	if s.DashboardURL == nil {
		return ""
	}
	return *s.DashboardURL
}

func (s *Sender) ConfirmationToken() string {
	if s.EmailConfirmationToken == nil {
		return ""
	}
	return *s.EmailConfirmationToken
}

func (s *Sender) CreationToken() string {
	if s.CreationURL == nil {
		return ""
	}
	return *s.CreationURL
}

func (s *Sender) SlugValue() string {
	if s.Slug == nil {
		return ""
	}
	return *s.Slug
}

// HasDashboard reports whether the sender went through signup rather than only the waitlist
func (s *Sender) HasDashboard() bool {
	return s.DashboardURL != nil && *s.DashboardURL != ""
}

// SenderSummary is a sender row with aggregate counts for the admin listing
type SenderSummary struct {
	Sender
	MessageCount  int64 `json:"message_count"`
	SmilesCreated int64 `json:"smiles_created"`
}

// SignupRequest represents the data needed to register a sender
type SignupRequest struct {
	Name   string `json:"name" form:"name" binding:"required,max=100"`
	Email  string `json:"email" form:"email" binding:"required,email"`
	Avatar string `json:"avatar" form:"avatar" binding:"required,max=32"`
}

// WaitlistRequest represents the data needed to join the waitlist
type WaitlistRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
}

// AdminActionRequest is the body of every POST /api/admin/:action call
type AdminActionRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
}

// AdminLoginRequest represents the data needed to open an admin session
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}
