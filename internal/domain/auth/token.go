// Package auth provides signed tenant-token handling. A token binds a caller
// to one tenant; the middleware turns the claim into the request scope.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stockledger/internal/core/id"
)

// TokenConfig holds tenant-token configuration.
type TokenConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultTokenConfig returns default token configuration.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:   secret,
		Issuer:   "stockledger",
		TokenTTL: time.Hour,
	}
}

// Claims carries the tenant binding.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid"`
}

// TokenService issues and validates tenant tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config}
}

// GenerateToken issues a token bound to one tenant.
func (s *TokenService) GenerateToken(subject string, tenantID id.ID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID: tenantID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates the token and returns the bound tenant id.
func (s *TokenService) ValidateToken(tokenString string) (id.ID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return id.Nil(), fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return id.Nil(), fmt.Errorf("invalid token claims")
	}

	tenantID, err := id.Parse(claims.TenantID)
	if err != nil {
		return id.Nil(), fmt.Errorf("invalid tenant claim: %w", err)
	}

	return tenantID, nil
}
