package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(DefaultTokenConfig("test-secret"))
	tenantID := id.New()

	token, expiresAt, err := svc.GenerateToken("integration-client", tenantID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID, got)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewTokenService(DefaultTokenConfig("secret-a"))
	verifier := NewTokenService(DefaultTokenConfig("secret-b"))

	token, _, err := issuer.GenerateToken("client", id.New())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := DefaultTokenConfig("test-secret")
	cfg.TokenTTL = -time.Minute
	svc := NewTokenService(cfg)

	token, _, err := svc.GenerateToken("client", id.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewTokenService(DefaultTokenConfig("test-secret"))

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
