package sessions

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	fallback := 30 * time.Minute

	t.Run("reads the exp claim", func(t *testing.T) {
		exp := now.Add(2 * time.Hour)
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": exp.Unix(),
			"sub": "sv001",
		}).SignedString([]byte("portal-secret"))
		require.NoError(t, err)

		require.Equal(t, exp.Unix(), TokenExpiry(raw, now, fallback).Unix())
	})

	t.Run("falls back when the claim is missing", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "sv001",
		}).SignedString([]byte("portal-secret"))
		require.NoError(t, err)

		require.Equal(t, now.Add(fallback), TokenExpiry(raw, now, fallback))
	})

	t.Run("falls back for an opaque token", func(t *testing.T) {
		require.Equal(t, now.Add(fallback), TokenExpiry("not-a-jwt", now, fallback))
	})
}

func TestSessionLegacyToken(t *testing.T) {
	s := &Session{token: &oauth2.Token{AccessToken: "main"}}
	require.Equal(t, "main", s.LegacyToken())

	s.legacyToken = "legacy"
	require.Equal(t, "legacy", s.LegacyToken())
}
