// Package session verifies the HS256 session tokens issued by the auth collaborator.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims represents the claims carried by a session token
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Role  string   `json:"role,omitempty"` // single-role tokens
}

// Config holds configuration for the Validator
type Config struct {
	Secret string
	Issuer string // optional; checked when set
	Leeway time.Duration
}

// Validator validates HS256 session tokens
type Validator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewValidator creates a new session token validator
func NewValidator(config Config) (*Validator, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &Validator{
		secret: []byte(config.Secret),
		issuer: config.Issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

// ValidateToken validates a token and returns the middleware claims
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*middleware.Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: expected %s", ErrInvalidIssuer, v.issuer)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return toMiddlewareClaims(claims)
}

func toMiddlewareClaims(claims *Claims) (*middleware.Claims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	roles := make([]string, 0, len(claims.Roles)+1)
	for _, r := range claims.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	if r := strings.TrimSpace(claims.Role); r != "" {
		roles = append(roles, r)
	}

	out := &middleware.Claims{
		Sub:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Roles: roles,
		Iss:   claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}

// Sign issues a token for claims. Used by tooling and tests; production sessions come from the auth collaborator.
func Sign(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
