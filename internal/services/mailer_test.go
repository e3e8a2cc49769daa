package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appErr "smiles/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogMailerRecentAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.log")
	m := NewLogMailer(path, "noreply@smiles.test")
	ctx := context.Background()

	recent, err := m.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	for _, subject := range []string{"first", "second", "third"} {
		require.NoError(t, m.Send(ctx, Email{To: "sam@acme.com", Subject: subject, Text: "body of " + subject}))
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(content), strings.Repeat("=", 60)))

	recent, err = m.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Contains(t, recent[0], "Subject: third")
	assert.Contains(t, recent[1], "Subject: second")
	assert.Contains(t, recent[0], "From: noreply@smiles.test")

	require.NoError(t, m.Clear())
	recent, err = m.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

type stubMailer struct {
	name  string
	err   error
	calls int
}

func (m *stubMailer) Name() string { return m.name }

func (m *stubMailer) Send(ctx context.Context, email Email) error {
	m.calls++
	return m.err
}

func TestFallbackMailer(t *testing.T) {
	ctx := context.Background()
	email := Email{To: "sam@acme.com", Subject: "hi"}

	t.Run("primary succeeds", func(t *testing.T) {
		primary, fallback := &stubMailer{name: "sendgrid"}, &stubMailer{name: "smtp"}
		require.NoError(t, NewFallbackMailer(primary, fallback, zap.NewNop()).Send(ctx, email))
		assert.Equal(t, 1, primary.calls)
		assert.Zero(t, fallback.calls)
	})

	t.Run("fallback rescues", func(t *testing.T) {
		primary := &stubMailer{name: "sendgrid", err: errors.New("503")}
		fallback := &stubMailer{name: "smtp"}
		require.NoError(t, NewFallbackMailer(primary, fallback, zap.NewNop()).Send(ctx, email))
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &stubMailer{name: "sendgrid", err: errors.New("503")}
		fallback := &stubMailer{name: "smtp", err: errors.New("connection refused")}
		err := NewFallbackMailer(primary, fallback, zap.NewNop()).Send(ctx, email)
		assert.ErrorIs(t, err, appErr.ErrDelivery)
		assert.ErrorIs(t, err, primary.err)
		assert.ErrorIs(t, err, fallback.err)
	})

	t.Run("no fallback configured", func(t *testing.T) {
		primary := &stubMailer{name: "sendgrid", err: errors.New("503")}
		m := NewFallbackMailer(primary, nil, zap.NewNop())
		assert.ErrorIs(t, m.Send(ctx, email), appErr.ErrDelivery)
		assert.Equal(t, "sendgrid", m.Name())
	})
}

func TestInstrumentKeepsName(t *testing.T) {
	inner := &stubMailer{name: "smtp"}
	m := Instrument(inner)
	assert.Equal(t, "smtp", m.Name())
	require.NoError(t, m.Send(context.Background(), Email{To: "sam@acme.com"}))
	assert.Equal(t, 1, inner.calls)
}

func TestEmailServiceWrapsDeliveryErrors(t *testing.T) {
	svc := NewEmailService(&stubMailer{name: "log", err: errors.New("disk full")}, "http://smiles.test", zap.NewNop())
	err := svc.SendSmileNotificationEmail(context.Background(), "Alex", "Sam", "sam@acme.com", "abc12345")
	assert.ErrorIs(t, err, appErr.ErrDelivery)
}
