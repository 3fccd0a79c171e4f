package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned when a token is well-formed but past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers malformed tokens, bad signatures and missing claims.
	ErrInvalid = errors.New("token invalid")
)

// Claims is the session token payload issued by the identity provider.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwtlib.RegisteredClaims
}

// Signer signs and verifies HS256 session tokens with a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer. An empty secret is rejected.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Sign creates a signed token for the identity, valid for ttl.
func (s *Signer) Sign(userID, username, email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Email:    email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token string and returns the claims. The returned error
// wraps ErrExpired or ErrInvalid.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithTimeFunc(s.now), jwtlib.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrInvalid)
	}
	return claims, nil
}
