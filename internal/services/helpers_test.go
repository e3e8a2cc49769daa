package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"smiles/internal/config"
	"smiles/internal/database"
	"smiles/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var unsafeDBName = regexp.MustCompile(`[^a-zA-Z0-9]`)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := unsafeDBName.ReplaceAllString(t.Name(), "_")
	db, err := database.Open(config.Database{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// recordingMailer keeps every email instead of sending it
type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
	fail bool
}

func (m *recordingMailer) Name() string {
	return "recording"
}

func (m *recordingMailer) Send(ctx context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *recordingMailer) emails() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *recordingMailer) last() Email {
	sent := m.emails()
	if len(sent) == 0 {
		return Email{}
	}
	return sent[len(sent)-1]
}

func (m *recordingMailer) countTo(to string) int {
	n := 0
	for _, e := range m.emails() {
		if e.To == to {
			n++
		}
	}
	return n
}

func (m *recordingMailer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type testApp struct {
	db        *gorm.DB
	mailer    *recordingMailer
	email     *EmailService
	senders   *SenderService
	signup    *SignupService
	stats     *StatsService
	messages  *MessageService
	admin     *AdminService
	pages     *PageService
	quickSend *QuickSendService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()
	mailer := &recordingMailer{}
	email := NewEmailService(mailer, "http://smiles.test", log)
	tokens := DefaultTokenSource()
	stats := NewStatsService(db, log)
	messages := NewMessageService(db, email, stats, tokens, log)

	return &testApp{
		db:        db,
		mailer:    mailer,
		email:     email,
		senders:   NewSenderService(db, log),
		signup:    NewSignupService(db, email, tokens, log),
		stats:     stats,
		messages:  messages,
		admin:     NewAdminService(db, email, tokens, log),
		pages:     NewPageService(db, email, tokens, log),
		quickSend: NewQuickSendService(db, email, messages, tokens, log),
	}
}

func (a *testApp) mustSignup(t *testing.T, name, email string) *models.Sender {
	t.Helper()

	result, err := a.signup.CreateUser(context.Background(), name, email, "🌟")
	require.NoError(t, err)

	sender, err := a.senders.GetByID(context.Background(), result.SenderID)
	require.NoError(t, err)
	return sender
}

func (a *testApp) mustConfirm(t *testing.T, sender *models.Sender) {
	t.Helper()
	_, err := a.signup.ConfirmEmail(context.Background(), sender.ConfirmationToken())
	require.NoError(t, err)
}

func (a *testApp) mustSend(t *testing.T, sender *models.Sender, recipient string) *CreatedMessage {
	t.Helper()

	name := strings.SplitN(recipient, "@", 2)[0]
	created, err := a.messages.CreateMessage(context.Background(), sender.ID, name, recipient, "You make my day better")
	require.NoError(t, err)
	return created
}
