package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/experta/session-engine/sessions"
)

// Claims carries the session binding embedded in both access and refresh
// tokens. Both token classes share the same claim shape; they differ only in
// expiry and signing secret.
type Claims struct {
	Identity  string            `json:"identity"`  // The user identity the token was minted for
	Device    string            `json:"device"`    // The device the session is bound to
	Platform  sessions.Platform `json:"platform"`  // Client platform (APP, WEB, PANEL)
	ForSystem bool              `json:"forSystem"` // System-account token
	jwt.RegisteredClaims
}

// TokenID returns the unique identity (jti) of the token.
func (c *Claims) TokenID() string {
	return c.ID
}
