// Package tokeninfo reads claims out of access tokens without verifying them.
//
// The client never holds the backend's signing key; it only needs the expiry
// to schedule refreshes, so signatures are deliberately not checked here.
package tokeninfo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/tesla-access/tesla-client/internal/utils"
)

var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of access token claims the client cares about.
type Claims struct {
	Subject   string
	TokenID   string
	TokenType string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Parse extracts claims from a raw JWT.
func Parse(raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	c := &Claims{}
	c.Subject, _ = mapClaims.GetSubject()
	c.TokenID, _ = mapClaims["jti"].(string)
	c.TokenType, _ = mapClaims["type"].(string)
	if roles, ok := mapClaims["roles"]; ok {
		c.Roles = utils.ToStringSlice(roles)
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// ExpiresWithin reports whether the claims carry an expiry that falls
// before now+skew. Tokens without an exp claim never expire by this measure.
func (c *Claims) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}
