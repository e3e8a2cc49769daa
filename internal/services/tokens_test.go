package services

import (
	"context"
	"errors"
	"testing"

	appErr "smiles/internal/errors"
	"smiles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// sequence returns the given values in order and then repeats the last one
func sequence(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	}
}

func TestUniqueTokenRetriesOnCollision(t *testing.T) {
	db := newTestDB(t)
	taken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, db.Create(&models.Sender{Name: "Taken", Email: "taken@acme.com", DashboardURL: &taken}).Error)

	token, err := uniqueToken(db, &models.Sender{}, "dashboard_url", sequence(taken, taken, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", token)
}

func TestUniqueTokenGivesUpAfterMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	taken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, db.Create(&models.Sender{Name: "Taken", Email: "taken@acme.com", DashboardURL: &taken}).Error)

	draws := 0
	_, err := uniqueToken(db, &models.Sender{}, "dashboard_url", func() (string, error) {
		draws++
		return taken, nil
	})
	assert.ErrorIs(t, err, appErr.ErrTokenExhausted)
	assert.Equal(t, maxTokenAttempts, draws)
}

func TestUniqueTokenPropagatesDrawErrors(t *testing.T) {
	db := newTestDB(t)

	_, err := uniqueToken(db, &models.Sender{}, "dashboard_url", func() (string, error) {
		return "", errors.New("entropy unavailable")
	})
	assert.Error(t, err)
}

func TestSignupFailsWhenTokensCollideForever(t *testing.T) {
	app := newTestApp(t)
	app.signup.tokens = TokenSource{Hex: sequence("cccccccccccccccccccccccccccccccc")}

	_, err := app.signup.CreateUser(context.Background(), "First", "first@acme.com", "🌟")
	// dashboard and confirmation tokens are checked separately, so the first signup succeeds
	require.NoError(t, err)

	_, err = app.signup.CreateUser(context.Background(), "Second", "second@acme.com", "🌟")
	assert.ErrorIs(t, err, appErr.ErrTokenExhausted)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(errors.New("UNIQUE constraint failed: senders.email")))
	assert.True(t, isDuplicateKey(errors.New(`ERROR: duplicate key value violates unique constraint "idx_senders_email"`)))
	assert.False(t, isDuplicateKey(errors.New("connection refused")))
	assert.False(t, isDuplicateKey(nil))
}
