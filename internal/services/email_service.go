package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	appErr "smiles/internal/errors"
	"smiles/internal/models"

	"go.uber.org/zap"
)

const signature = "Keep spreading smiles,\nThe One Trillion Smiles Team"

type EmailService struct {
	mailer  Mailer
	baseURL string
	log     *zap.Logger
}

func NewEmailService(mailer Mailer, baseURL string, log *zap.Logger) *EmailService {
	return &EmailService{
		mailer:  mailer,
		baseURL: baseURL,
		log:     log,
	}
}

// Channel names the mailer in use, recorded on notification rows
func (s *EmailService) Channel() string {
	return s.mailer.Name()
}

func (s *EmailService) DashboardLink(token string) string {
	return fmt.Sprintf("%s/dashboard/%s", s.baseURL, token)
}

func (s *EmailService) ConfirmLink(token string) string {
	return fmt.Sprintf("%s/confirm/%s", s.baseURL, token)
}

func (s *EmailService) CreationLink(token string) string {
	return fmt.Sprintf("%s/create/%s", s.baseURL, token)
}

func (s *EmailService) MessageLink(token string) string {
	return fmt.Sprintf("%s/s/%s", s.baseURL, token)
}

func (s *EmailService) PageLink(slug string) string {
	return fmt.Sprintf("%s/p/%s", s.baseURL, slug)
}

func (s *EmailService) send(ctx context.Context, email Email) error {
	if err := s.mailer.Send(ctx, email); err != nil {
		if !errors.Is(err, appErr.ErrDelivery) {
			err = fmt.Errorf("%w: %w", appErr.ErrDelivery, err)
		}
		s.log.Error("Failed to send email",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
		return err
	}
	s.log.Debug("Email sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// SendWelcomeEmail greets a new sender with both the confirmation and dashboard links
func (s *EmailService) SendWelcomeEmail(ctx context.Context, sender *models.Sender) error {
	confirmLink := s.ConfirmLink(sender.ConfirmationToken())
	dashboardLink := s.DashboardLink(sender.DashboardToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nWelcome to One Trillion Smiles. Please confirm your email:\n%s\n\n"+
		"Your private dashboard is ready. Bookmark it, it is the only way back in:\n%s\n\n"+
		"You can send up to 3 smiles before confirming.\n\n%s",
		sender.Name, confirmLink, dashboardLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>Welcome to One Trillion Smiles. <a href=\"%s\">Confirm your email</a>.</p>"+
		"<p>Your private dashboard is ready: <a href=\"%s\">%s</a></p><p>You can send up to 3 smiles before confirming.</p>",
		html.EscapeString(sender.Name), confirmLink, dashboardLink, dashboardLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Welcome to One Trillion Smiles! Confirm your email",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendAlreadyRegisteredEmail reminds someone who signed up twice where their dashboard is
func (s *EmailService) SendAlreadyRegisteredEmail(ctx context.Context, sender *models.Sender) error {
	dashboardLink := s.DashboardLink(sender.DashboardToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nYou already have an account. Here is your dashboard:\n%s\n\n%s",
		sender.Name, dashboardLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>You already have an account. Here is your dashboard: <a href=\"%s\">%s</a></p>",
		html.EscapeString(sender.Name), dashboardLink, dashboardLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "You already have a Smile dashboard",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendConfirmationOnlyEmail re-sends the confirmation link, used when the send limit is hit
func (s *EmailService) SendConfirmationOnlyEmail(ctx context.Context, sender *models.Sender) error {
	confirmLink := s.ConfirmLink(sender.ConfirmationToken())
	dashboardLink := s.DashboardLink(sender.DashboardToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nYou've sent 3 smiles! Confirm your email to keep spreading smiles:\n%s\n\n"+
		"Your dashboard:\n%s\n\n%s",
		sender.Name, confirmLink, dashboardLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>You've sent 3 smiles! <a href=\"%s\">Confirm your email</a> to keep spreading smiles.</p>"+
		"<p>Your dashboard: <a href=\"%s\">%s</a></p>",
		html.EscapeString(sender.Name), confirmLink, dashboardLink, dashboardLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Confirm your email to keep sending smiles",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendSmileNotificationEmail tells a recipient a smile is waiting for them
func (s *EmailService) SendSmileNotificationEmail(ctx context.Context, senderName, recipientName, recipientEmail, messageURL string) error {
	messageLink := s.MessageLink(messageURL)

	plainContent := fmt.Sprintf("Hi %s,\n\n%s sent you a smile. Open it here:\n%s\n\n%s",
		recipientName, senderName, messageLink, signature)
	htmlContent := fmt.Sprintf("<p>Hi %s,</p><p><strong>%s</strong> sent you a smile.</p><p><a href=\"%s\">Open your smile</a></p>",
		html.EscapeString(recipientName), html.EscapeString(senderName), messageLink)

	return s.send(ctx, Email{
		To:      recipientEmail,
		ToName:  recipientName,
		Subject: fmt.Sprintf("%s wants to make you smile", senderName),
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendQuickSendWelcomeEmail welcomes a recipient who replied and got an account on the way
func (s *EmailService) SendQuickSendWelcomeEmail(ctx context.Context, sender *models.Sender) error {
	dashboardLink := s.DashboardLink(sender.DashboardToken())
	confirmLink := s.ConfirmLink(sender.ConfirmationToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nYou just sent a smile to someone, nice work!\n\n"+
		"Here's your personal dashboard where you can send more smiles and track your impact:\n%s\n\n"+
		"You can send up to 3 smiles. After that, just confirm your email to keep spreading happiness:\n%s\n\n%s",
		sender.Name, dashboardLink, confirmLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>You just sent a smile to someone, nice work!</p>"+
		"<p>Your personal dashboard: <a href=\"%s\">%s</a></p><p>You can send up to 3 smiles. After that, <a href=\"%s\">confirm your email</a>.</p>",
		html.EscapeString(sender.Name), dashboardLink, dashboardLink, confirmLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "You just sent a smile!",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

func (s *EmailService) SendDashboardReminderEmail(ctx context.Context, sender *models.Sender) error {
	dashboardLink := s.DashboardLink(sender.DashboardToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nJust a friendly reminder that your Smile dashboard is waiting for you:\n%s\n\n"+
		"Have you sent any smiles lately? It only takes 2 minutes to make someone's day better.\n\n%s",
		sender.Name, dashboardLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>Your Smile dashboard is waiting for you: <a href=\"%s\">%s</a></p>"+
		"<p>It only takes 2 minutes to make someone's day better.</p>",
		html.EscapeString(sender.Name), dashboardLink, dashboardLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Reminder: Spread some smiles today!",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

func (s *EmailService) SendNewDashboardLinkEmail(ctx context.Context, sender *models.Sender) error {
	dashboardLink := s.DashboardLink(sender.DashboardToken())

	plainContent := fmt.Sprintf("Hey %s!\n\nWe've generated a new dashboard link for you:\n%s\n\n"+
		"Your old link will no longer work. Please bookmark this new one!\n\n%s",
		sender.Name, dashboardLink, signature)
	htmlContent := fmt.Sprintf("<p>Hey %s!</p><p>We've generated a new dashboard link for you: <a href=\"%s\">%s</a></p>"+
		"<p>Your old link will no longer work.</p>",
		html.EscapeString(sender.Name), dashboardLink, dashboardLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Your New Smile Dashboard Link",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendCreationLinkEmail invites a sender to build their happiness page
func (s *EmailService) SendCreationLinkEmail(ctx context.Context, sender *models.Sender) error {
	createLink := s.CreationLink(sender.CreationToken())

	plainContent := fmt.Sprintf("Welcome to Happiness!\n\nYou're all set to create your happiness page and spread joy "+
		"to your colleagues, classmates, and friends.\n\nClick here to get started:\n%s\n\n"+
		"This link is private and unique to you, don't share it with others.\n\nHappy creating!", createLink)
	htmlContent := fmt.Sprintf("<p>Welcome to Happiness!</p><p><a href=\"%s\">Create your happiness page</a></p>"+
		"<p>This link is private and unique to you, don't share it with others.</p>", createLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Create Your Happiness Page!",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

func (s *EmailService) SendNewCreationLinkEmail(ctx context.Context, sender *models.Sender) error {
	createLink := s.CreationLink(sender.CreationToken())

	plainContent := fmt.Sprintf("Hi!\n\nHere is a new link to edit your happiness page:\n%s\n\n"+
		"Your old link will no longer work.\n\nHappy creating!", createLink)
	htmlContent := fmt.Sprintf("<p>Hi!</p><p>Here is a new link to edit your happiness page: <a href=\"%s\">%s</a></p>"+
		"<p>Your old link will no longer work.</p>", createLink, createLink)

	return s.send(ctx, Email{
		To:      sender.Email,
		ToName:  sender.Name,
		Subject: "Your New Happiness Page Link",
		Text:    plainContent,
		HTML:    htmlContent,
	})
}

// SendPageInviteEmail tells a recipient that a published happiness page has a message for them
func (s *EmailService) SendPageInviteEmail(ctx context.Context, sender *models.Sender, recipientName, recipientEmail string) error {
	pageLink := s.PageLink(sender.SlugValue())
	from := sender.Name
	if from == "" {
		from = sender.Email
	}

	plainContent := fmt.Sprintf("Hi %s,\n\n%s left you a message on their happiness page:\n%s\n\n"+
		"Enter your email on the page to read it.", recipientName, from, pageLink)
	htmlContent := fmt.Sprintf("<p>Hi %s,</p><p><strong>%s</strong> left you a message on their happiness page.</p>"+
		"<p><a href=\"%s\">Read it here</a></p>",
		html.EscapeString(recipientName), html.EscapeString(from), pageLink)

	return s.send(ctx, Email{
		To:      recipientEmail,
		ToName:  recipientName,
		Subject: fmt.Sprintf("%s has a message for you", from),
		Text:    plainContent,
		HTML:    htmlContent,
	})
}
