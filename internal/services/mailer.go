package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"smiles/internal/config"
	appErr "smiles/internal/errors"
	"smiles/internal/metrics"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// devLogSeparator delimits emails in the development log file
var devLogSeparator = strings.Repeat("=", 60)

// Email is one outgoing transactional message
type Email struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer is a channel able to deliver an Email
type Mailer interface {
	Send(ctx context.Context, email Email) error
	Name() string
}

// NewMailer builds the channel for the environment: the log file in development,
// SendGrid with an optional SMTP fallback in production
func NewMailer(cfg *config.Config, log *zap.Logger) (Mailer, *LogMailer) {
	if !cfg.IsProduction() {
		devLog := NewLogMailer(cfg.Email.DevLogPath, cfg.Email.FromEmail)
		return Instrument(devLog), devLog
	}

	var fallback Mailer
	if cfg.Email.SMTPEnabled() {
		fallback = Instrument(NewSMTPMailer(cfg.Email))
	}
	return NewFallbackMailer(Instrument(NewSendGridMailer(cfg.Email)), fallback, log), nil
}

// LogMailer appends emails to a local file instead of sending them
type LogMailer struct {
	path string
	from string
	mu   sync.Mutex
}

func NewLogMailer(path, from string) *LogMailer {
	return &LogMailer{path: path, from: from}
}

func (m *LogMailer) Name() string {
	return "log"
}

func (m *LogMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("\n" + devLogSeparator + "\n")
	fmt.Fprintf(&b, "EMAIL SENT AT: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "To: %s\n", email.To)
	fmt.Fprintf(&b, "From: %s\n", m.from)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Message:\n%s\n", email.Text)
	b.WriteString(devLogSeparator + "\n")

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write email log: %w", err)
	}
	return nil
}

// Recent returns up to limit logged emails, newest first
func (m *LogMailer) Recent(limit int) ([]string, error) {
	m.mu.Lock()
	content, err := os.ReadFile(m.path)
	m.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read email log: %w", err)
	}

	var blocks []string
	for _, block := range strings.Split(string(content), devLogSeparator) {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}

	if limit > 0 && len(blocks) > limit {
		blocks = blocks[len(blocks)-limit:]
	}
	recent := make([]string, 0, len(blocks))
	for i := len(blocks) - 1; i >= 0; i-- {
		recent = append(recent, blocks[i])
	}
	return recent, nil
}

// Clear empties the log file
func (m *LogMailer) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Truncate(m.path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear email log: %w", err)
	}
	return nil
}

// SendGridMailer delivers through the SendGrid v3 API
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(cfg config.Email) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(cfg.SendGridAPIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (m *SendGridMailer) Name() string {
	return "sendgrid"
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(email.ToName, email.To)
	message := mail.NewSingleEmail(from, email.Subject, to, email.Text, email.HTML)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email to %s: %d", email.To, response.StatusCode)
	}
	return nil
}

// SMTPMailer delivers through a plain SMTP relay
type SMTPMailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPMailer(cfg config.Email) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (m *SMTPMailer) Name() string {
	return "smtp"
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetAddressHeader("To", email.To, email.ToName)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Text)
	if email.HTML != "" {
		msg.AddAlternative("text/html", email.HTML)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp delivery to %s failed: %w", email.To, err)
	}
	return nil
}

// FallbackMailer tries the primary channel and then the fallback one.
// Delivery only fails when every configured channel failed.
type FallbackMailer struct {
	primary  Mailer
	fallback Mailer
	log      *zap.Logger
}

func NewFallbackMailer(primary, fallback Mailer, log *zap.Logger) *FallbackMailer {
	return &FallbackMailer{primary: primary, fallback: fallback, log: log}
}

func (m *FallbackMailer) Name() string {
	if m.fallback == nil {
		return m.primary.Name()
	}
	return m.primary.Name() + "+" + m.fallback.Name()
}

func (m *FallbackMailer) Send(ctx context.Context, email Email) error {
	primaryErr := m.primary.Send(ctx, email)
	if primaryErr == nil {
		return nil
	}

	if m.fallback == nil {
		return fmt.Errorf("%w: %w", appErr.ErrDelivery, primaryErr)
	}

	m.log.Warn("Primary email channel failed, trying fallback",
		zap.String("primary", m.primary.Name()),
		zap.String("fallback", m.fallback.Name()),
		zap.String("to", email.To),
		zap.Error(primaryErr))

	if err := m.fallback.Send(ctx, email); err != nil {
		return fmt.Errorf("%w: %w", appErr.ErrDelivery, errors.Join(primaryErr, err))
	}
	return nil
}

type instrumentedMailer struct {
	Mailer
}

// Instrument counts every delivery attempt of m in emails_sent_total
func Instrument(m Mailer) Mailer {
	return instrumentedMailer{Mailer: m}
}

func (m instrumentedMailer) Send(ctx context.Context, email Email) error {
	err := m.Mailer.Send(ctx, email)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.EmailsSentTotal.WithLabelValues(m.Name(), status).Inc()
	return err
}
