package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for malformed, tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated subject resolved from a bearer token. It is
// created per request and passed explicitly to the services.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

// Anonymous reports whether no subject was resolved.
func (i Identity) Anonymous() bool {
	return strings.TrimSpace(i.UserID) == ""
}

// TokenVerifier resolves an Identity from a bearer token.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// TokenIssuer signs and verifies bearer tokens bound to a user id.
type TokenIssuer interface {
	TokenVerifier
	Issue(userID string) (string, error)
}

// JWTIssuer implements TokenIssuer with HS256-signed JWTs. The subject claim
// carries the user id.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer creates an issuer. A ttl of 0 selects DefaultTokenTTL.
func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for userID that expires after the configured ttl.
func (j *JWTIssuer) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("failed to generate token: empty subject")
	}
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(j.ttl).Unix(),
	})

	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// Verify parses and validates token, rejecting other signing methods,
// expired tokens and tokens without a subject.
func (j *JWTIssuer) Verify(tokenString string) (Identity, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ExpiresAt == 0 || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:    claims.Subject,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
