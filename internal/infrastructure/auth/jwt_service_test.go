package auth

import (
	"testing"
	"time"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()
	tokens, err := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return tokens
}

var testUser = &models.User{ID: "7f1c2b1e-9b4a-4f7e-8a53-0c6f1b7a2d11", Username: "kofi", UserType: models.UserTypeUser}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("", "x", time.Hour, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService("same", "same", time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestTokenService_IssueAndParse(t *testing.T) {
	tokens := newTestTokens(t)

	pair, err := tokens.Issue(testUser)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	p, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, p.UserID)
	assert.Equal(t, "kofi", p.Username)
	assert.Equal(t, models.UserTypeUser, p.UserType)
	assert.NotEmpty(t, p.TokenID)
	assert.WithinDuration(t, pair.ExpiresAt, p.ExpiresAt, time.Second)

	r, err := tokens.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, r.UserID)
	assert.NotEqual(t, p.TokenID, r.TokenID)
}

func TestTokenService_RejectsWrongKind(t *testing.T) {
	tokens := newTestTokens(t)
	pair, err := tokens.Issue(testUser)
	require.NoError(t, err)

	_, err = tokens.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)

	_, err = tokens.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)
}

func TestTokenService_Expired(t *testing.T) {
	tokens := newTestTokens(t)
	pair, err := tokens.Issue(testUser)
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)

	// refresh tokens outlive access tokens
	_, err = tokens.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_Garbage(t *testing.T) {
	_, err := newTestTokens(t).ParseAccess("not.a.token")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)
}
