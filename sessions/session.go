package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Session is the ephemeral authenticated state derived from an account's
// token pair. It is valid for one burst of portal calls; callers must not
// hold it across refreshes.
type Session struct {
	AccountID   string
	ChatID      int64
	Username    string
	DisplayName string
	DeviceUUID  string

	token       *oauth2.Token
	legacyToken string
}

// Token returns the permission-v2 bearer token.
func (s *Session) Token() string {
	return s.token.AccessToken
}

// LegacyToken returns the token the older elearning APIs expect, falling
// back to the main token when the login response carried no legacy token.
func (s *Session) LegacyToken() string {
	if s.legacyToken != "" {
		return s.legacyToken
	}
	return s.token.AccessToken
}

// Expiry returns the token expiry.
func (s *Session) Expiry() time.Time {
	return s.token.Expiry
}

// TokenExpiry reads the exp claim of a portal JWT without verifying the
// signature (the signing key belongs to the portal). fallbackTTL applies
// when the claim is absent or the token is not parseable as a JWT.
func TokenExpiry(rawToken string, now time.Time, fallbackTTL time.Duration) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return now.Add(fallbackTTL)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return now.Add(fallbackTTL)
	}
	return exp.Time
}
