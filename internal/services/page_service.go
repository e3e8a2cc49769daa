package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	appErr "smiles/internal/errors"
	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOverallMessage  = "You make me happy"
	defaultNotFoundMessage = "I don't think we've crossed paths, but thanks for checking out my happiness page! Feel free to create your own."
	defaultEmotion         = "happy"
	maxEmotionLength       = 32
)

// SlugPattern is the shape of a happiness page slug
var SlugPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

var themes = []models.Theme{
	{ID: "rosie", Name: "Rosie the Unicorn", BackgroundColor: "#FFB6C1", CharacterImage: "1.png", Description: "Magical and sweet"},
	{ID: "hooty", Name: "Hooty the Owl", BackgroundColor: "#40E0D0", CharacterImage: "2.png", Description: "Wise and peaceful"},
	{ID: "bruno", Name: "Bruno the Bear", BackgroundColor: "#DEB887", CharacterImage: "3.png", Description: "Warm and comforting"},
	{ID: "whiskers", Name: "Whiskers the Seal", BackgroundColor: "#D3D3D3", CharacterImage: "4.png", Description: "Gentle and calm"},
	{ID: "penny", Name: "Penny the Pig", BackgroundColor: "#F08080", CharacterImage: "5.png", Description: "Cheerful and bright"},
	{ID: "lily", Name: "Lily the Frog", BackgroundColor: "#98FB98", CharacterImage: "6.png", Description: "Fresh and hopeful"},
	{ID: "buzzy", Name: "Buzzy the Bee", BackgroundColor: "#FFD700", CharacterImage: "7.png", Description: "Sunny and energetic"},
	{ID: "panda", Name: "Panda the Panda", BackgroundColor: "#F5F5F5", CharacterImage: "8.png", Description: "Classic and timeless"},
}

// Themes returns the fixed character catalogue
func Themes() []models.Theme {
	out := make([]models.Theme, len(themes))
	copy(out, themes)
	return out
}

// ThemeByID looks a theme up in the catalogue
func ThemeByID(id string) (models.Theme, bool) {
	for _, theme := range themes {
		if theme.ID == id {
			return theme, true
		}
	}
	return models.Theme{}, false
}

// PageEditor is everything the creation page needs to render
type PageEditor struct {
	Sender   *models.Sender   `json:"sender"`
	Messages []models.Message `json:"messages"`
}

// PublicPage is an active happiness page as visitors see it
type PublicPage struct {
	Sender     *models.Sender `json:"sender"`
	ThemeColor string         `json:"theme_color,omitempty"`
}

type SavePageResult struct {
	Slug          string `json:"slug"`
	SavedMessages int    `json:"saved_messages"`
	InvitesSent   int    `json:"invites_sent"`
}

// PageService runs the happiness page flow: waitlist, creation link, editing and publishing
type PageService struct {
	db     *gorm.DB
	email  *EmailService
	tokens TokenSource
	log    *zap.Logger
}

func NewPageService(db *gorm.DB, email *EmailService, tokens TokenSource, log *zap.Logger) *PageService {
	return &PageService{db: db, email: email, tokens: tokens, log: log}
}

// AddToWaitlist records interest from an email that has no account yet
func (s *PageService) AddToWaitlist(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return appErr.Validation("Please enter a valid email address")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Sender{}).Where("email = ? AND status <> ?", email, models.StatusWaitlist).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check senders: %w", err)
		}
		if count > 0 {
			return appErr.Conflict("Email already registered")
		}

		if err := tx.Model(&models.Waitlist{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check waitlist: %w", err)
		}
		if count > 0 {
			return appErr.Conflict("Email already on waitlist")
		}

		if err := tx.Create(&models.Waitlist{Email: email, CreatedAt: time.Now()}).Error; err != nil {
			if isDuplicateKey(err) {
				return appErr.Conflict("Email already on waitlist")
			}
			return fmt.Errorf("failed to join waitlist: %w", err)
		}
		if err := tx.Create(&models.Sender{Email: email, Status: models.StatusWaitlist}).Error; err != nil {
			if isDuplicateKey(err) {
				return appErr.Conflict("Email already on waitlist")
			}
			return fmt.Errorf("failed to create waitlist sender: %w", err)
		}

		s.log.Info("Email joined waitlist", zap.String("email", email))
		return nil
	})
}

// applyPageDefaults fills slug, theme and page copy for a sender about to get a creation link
func applyPageDefaults(tx *gorm.DB, sender *models.Sender) error {
	if sender.Slug == nil || *sender.Slug == "" {
		slug, err := uniqueSlug(tx, sender.Email)
		if err != nil {
			return err
		}
		sender.Slug = &slug
	}
	if sender.Theme == "" {
		sender.Theme = themes[rand.Intn(len(themes))].ID
	}
	if sender.OverallMessage == "" {
		sender.OverallMessage = defaultOverallMessage
	}
	if sender.NotFoundMessage == "" {
		sender.NotFoundMessage = defaultNotFoundMessage
	}
	return nil
}

// uniqueSlug derives a slug from the local part of email, adding a number until it is free
func uniqueSlug(tx *gorm.DB, email string) (string, error) {
	local := strings.SplitN(email, "@", 2)[0]
	base := strings.ToLower(nonAlphanumeric.ReplaceAllString(local, ""))
	if base == "" {
		base = "smiles"
	}

	slug := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Model(&models.Sender{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return slug, nil
		}
		if counter > maxTokenAttempts*10 {
			return "", appErr.Newf(appErr.ErrTokenExhausted, "could not find a free slug for %q", base)
		}
		slug = fmt.Sprintf("%s%d", base, counter)
	}
}

// GetEditor loads the sender behind creationURL with their drafted and sent messages
func (s *PageService) GetEditor(ctx context.Context, creationURL string) (*PageEditor, error) {
	sender, err := s.senderByCreationURL(s.db.WithContext(ctx), creationURL)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := s.db.WithContext(ctx).Where("sender_id = ?", sender.ID).Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load page messages: %w", err)
	}
	return &PageEditor{Sender: sender, Messages: messages}, nil
}

func (s *PageService) senderByCreationURL(tx *gorm.DB, creationURL string) (*models.Sender, error) {
	if creationURL == "" {
		return nil, appErr.NotFound("Creation page")
	}
	var sender models.Sender
	if err := tx.Where("creation_url = ?", creationURL).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("Creation page")
		}
		return nil, fmt.Errorf("failed to load creation page: %w", err)
	}
	return &sender, nil
}

// SavePage stores page settings and drafted messages. With publish set, every drafted message
// gets a link and its recipient is invited by email at most once. The creation link only ever
// travels to the sender's inbox, so using it confirms their email.
func (s *PageService) SavePage(ctx context.Context, creationURL string, req models.SavePageRequest) (*SavePageResult, error) {
	var (
		sender    *models.Sender
		result    SavePageResult
		invites   []models.Message
		confirmed bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sender, err = s.senderByCreationURL(tx, creationURL)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"last_activity": now}
		if !sender.EmailConfirmed {
			updates["email_confirmed"] = true
			confirmed = true
		}
		if req.Settings != nil {
			if err := s.applySettings(tx, sender, req.Settings, updates); err != nil {
				return err
			}
		}
		if req.Settings != nil || req.Publish {
			updates["status"] = models.StatusActive
			if sender.ActivatedAt == nil {
				updates["activated_at"] = now
			}
		}
		if err := tx.Model(sender).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				return appErr.Conflict("This slug is already taken")
			}
			return fmt.Errorf("failed to save page settings: %w", err)
		}

		saved, err := s.saveDrafts(tx, sender.ID, req.Messages)
		if err != nil {
			return err
		}
		result.SavedMessages = saved

		if req.Publish {
			invites, err = s.publishDrafts(tx, sender.ID, now)
			if err != nil {
				return err
			}
		}

		return tx.First(sender, sender.ID).Error
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		s.log.Info("Sender confirmed email through creation link", zap.Uint("sender_id", sender.ID))
	}

	result.Slug = sender.SlugValue()
	for i := range invites {
		if err := s.invite(ctx, sender, &invites[i]); err != nil {
			s.log.Warn("Could not send page invite", zap.String("recipient", invites[i].RecipientEmail), zap.Error(err))
			continue
		}
		result.InvitesSent++
	}
	return &result, nil
}

func (s *PageService) applySettings(tx *gorm.DB, sender *models.Sender, settings *models.PageSettings, updates map[string]interface{}) error {
	if settings.Slug != nil {
		slug := strings.TrimSpace(*settings.Slug)
		if !SlugPattern.MatchString(slug) {
			return appErr.Validation("Slug can only contain letters, numbers, and hyphens")
		}
		var count int64
		if err := tx.Model(&models.Sender{}).Where("slug = ? AND id <> ?", slug, sender.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if count > 0 {
			return appErr.Conflict("This slug is already taken")
		}
		updates["slug"] = slug
	}
	if settings.OverallMessage != nil {
		updates["overall_message"] = strings.TrimSpace(*settings.OverallMessage)
	}
	if settings.Theme != nil {
		if _, ok := ThemeByID(*settings.Theme); !ok {
			return appErr.Validation("Unknown theme")
		}
		updates["theme"] = *settings.Theme
	}
	if settings.NotFoundMessage != nil {
		updates["not_found_message"] = strings.TrimSpace(*settings.NotFoundMessage)
	}
	return nil
}

// saveDrafts upserts drafted messages by recipient email. Messages already sent are left alone.
// Any invalid draft fails the whole save.
func (s *PageService) saveDrafts(tx *gorm.DB, senderID uint, drafts []models.PageMessage) (int, error) {
	saved := 0
	for i, draft := range drafts {
		in, err := validateMessageInput(draft.RecipientName, draft.RecipientEmail, draft.Message)
		if err != nil {
			return saved, appErr.Newf(appErr.ErrValidation, "Message %d: %s", i+1, appErr.Message(err, "invalid message"))
		}
		emotion := strings.TrimSpace(draft.Emotion)
		if emotion == "" {
			emotion = defaultEmotion
		}
		if utf8.RuneCountInString(emotion) > maxEmotionLength {
			return saved, appErr.Newf(appErr.ErrValidation, "Message %d: emotion must be %d characters or fewer", i+1, maxEmotionLength)
		}
		email := in.recipientEmail

		var existing models.Message
		err = tx.Where("sender_id = ? AND recipient_email = ?", senderID, email).Order("id ASC").First(&existing).Error
		switch {
		case err == nil:
			if existing.SentAt != nil {
				continue
			}
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"recipient_name": in.recipientName,
				"message":        in.text,
				"emotion":        emotion,
			}).Error; err != nil {
				return saved, fmt.Errorf("failed to update drafted message: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			messageURL, err := uniqueToken(tx, &models.Message{}, "message_url", s.tokens.Base62)
			if err != nil {
				return saved, err
			}
			if err := tx.Create(&models.Message{
				SenderID:       senderID,
				RecipientName:  in.recipientName,
				RecipientEmail: email,
				Text:           in.text,
				Emotion:        emotion,
				MessageURL:     messageURL,
			}).Error; err != nil {
				return saved, fmt.Errorf("failed to save drafted message: %w", err)
			}
		default:
			return saved, fmt.Errorf("failed to look up drafted message: %w", err)
		}
		saved++
	}
	return saved, nil
}

// publishDrafts stamps sent_at on drafts and returns the page messages whose recipient
// has not been invited yet, including ones whose earlier invite failed
func (s *PageService) publishDrafts(tx *gorm.DB, senderID uint, now time.Time) ([]models.Message, error) {
	if err := tx.Model(&models.Message{}).
		Where("sender_id = ? AND sent_at IS NULL AND message <> ''", senderID).
		Update("sent_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to publish messages: %w", err)
	}

	var pending []models.Message
	if err := tx.
		Where("sender_id = ? AND sent_at IS NOT NULL AND emotion <> ''", senderID).
		Where("NOT EXISTS (SELECT 1 FROM email_notifications n WHERE n.sender_id = messages.sender_id AND n.recipient_email = messages.recipient_email AND n.notification_type = ?)", models.NotificationPageInvite).
		Order("id ASC").
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending invites: %w", err)
	}
	return pending, nil
}

// invite emails the recipient of a published message and records it so republishing skips them
func (s *PageService) invite(ctx context.Context, sender *models.Sender, message *models.Message) error {
	if err := s.email.SendPageInviteEmail(ctx, sender, message.RecipientName, message.RecipientEmail); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Create(&models.EmailNotification{
		SenderID:         sender.ID,
		RecipientEmail:   message.RecipientEmail,
		NotificationType: models.NotificationPageInvite,
		Metadata: datatypes.JSONMap{
			"message_url": message.MessageURL,
			"channel":     s.email.Channel(),
		},
		CreatedAt: time.Now(),
	}).Error
}

// GetBySlug returns an active happiness page
func (s *PageService) GetBySlug(ctx context.Context, slug string) (*PublicPage, error) {
	var sender models.Sender
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("Happiness page")
		}
		return nil, fmt.Errorf("failed to load happiness page: %w", err)
	}
	if sender.Status != models.StatusActive {
		return nil, appErr.NotFound("Happiness page")
	}

	page := &PublicPage{Sender: &sender}
	if theme, ok := ThemeByID(sender.Theme); ok {
		page.ThemeColor = theme.BackgroundColor
	}
	return page, nil
}
