package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/response"
)

const (
	ContextKeyClaims = "claims"
	tokenCookie      = "token"

	msgNoToken      = "No token provided, please log in again."
	msgInvalidToken = "Invalid or expired token, please log in again."
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores its claims.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Unauthorized(c, msgNoToken)
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			response.Unauthorized(c, msgInvalidToken)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// OptionalAuth stores the claims when a valid token is present but never
// blocks the request.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractToken(c); token != "" {
			if claims, err := tokens.Parse(token); err == nil {
				c.Set(ContextKeyClaims, claims)
			}
		}
		c.Next()
	}
}

// CurrentClaims returns the claims set by Auth, or nil.
func CurrentClaims(c *gin.Context) *jwt.Claims {
	v, _ := c.Get(ContextKeyClaims)
	claims, _ := v.(*jwt.Claims)
	return claims
}

// IsAuthenticated returns true if the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentClaims(c) != nil
}

// ExtractToken reads the token cookie, then the Authorization header, then
// the token query parameter.
func ExtractToken(c *gin.Context) string {
	if v, err := c.Cookie(tokenCookie); err == nil {
		if token := NormalizeToken(v); token != "" {
			return token
		}
	}
	if token := NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
