package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims mirrors the access token payload issued by the credentialing API.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID *int64 `json:"company_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the actor used for permission checks.
func (c *Claims) Actor() *Actor {
	if c == nil {
		return nil
	}
	actor := &Actor{
		UserID: c.UserID,
		Name:   c.Name,
		Email:  c.Email,
		Role:   Role(strings.ToLower(strings.TrimSpace(c.Role))),
	}
	if c.CompanyID != nil {
		id := *c.CompanyID
		actor.CompanyID = &id
	}
	return actor
}

// IssueToken signs an HS256 token for actor. The agent uses it for its own
// bearer auth and the development mock; production tokens come from the API.
func IssueToken(secret []byte, actor Actor, tokenType string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}
	if tokenType == "" {
		tokenType = TokenTypeAccess
	}
	now = now.UTC()
	claims := Claims{
		UserID:    actor.UserID,
		Name:      actor.Name,
		Email:     actor.Email,
		Role:      string(actor.Role),
		CompanyID: actor.CompanyID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseClaims verifies signature and expiry of an access token.
func ParseClaims(token string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(secret) == 0 {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "" && claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeClaims reads the payload without verifying the signature. Clients
// holding a token issued by the API only need it for display and role hints;
// the API remains the enforcement point.
func DecodeClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether token is undecodable or past its exp claim.
func IsExpired(token string, now time.Time) bool {
	claims, err := DecodeClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Time.Before(now)
}
