package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJWT(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tok, err := GenerateJWT("app-key", "app-secret", now)
	require.NoError(t, err)

	assert.Equal(t, now, tok.IssuedAt)
	assert.Equal(t, TokenValidity, tok.ExpiresAt.Sub(tok.IssuedAt))

	claims, err := ParseJWT(tok.Raw, "app-secret", now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "app-key", claims.AppKey)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Time().Unix())
	assert.Equal(t, now.Add(24*time.Hour).Unix(), claims.Expiry.Time().Unix())
	assert.Equal(t, claims.Expiry.Time().Unix(), claims.TokenExp)
}

func TestGenerateJWTHeader(t *testing.T) {
	tok, err := GenerateJWT("k", "s", time.Now())
	require.NoError(t, err)

	parts := strings.Split(tok.Raw, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)

	var header map[string]string
	require.NoError(t, json.Unmarshal(raw, &header))
	assert.Equal(t, "JWT", header["typ"])
	assert.Equal(t, "HS256", header["alg"])
}

func TestGenerateJWTEmptyCredentials(t *testing.T) {
	_, err := GenerateJWT("", "secret", time.Now())
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = GenerateJWT("key", "", time.Now())
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestParseJWTWrongSecret(t *testing.T) {
	now := time.Now()
	tok, err := GenerateJWT("key", "secret", now)
	require.NoError(t, err)

	_, err = ParseJWT(tok.Raw, "other", now)
	assert.Error(t, err)
}

func TestParseJWTExpired(t *testing.T) {
	now := time.Now()
	tok, err := GenerateJWT("key", "secret", now)
	require.NoError(t, err)

	_, err = ParseJWT(tok.Raw, "secret", now.Add(25*time.Hour))
	if !errors.Is(err, jwt.ErrExpired) {
		t.Errorf("ParseJWT() after expiry = %v, want jwt.ErrExpired", err)
	}
}
