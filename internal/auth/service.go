// Package auth issues and verifies the signed credentials workers use to
// reach staff-only endpoints.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// TokenTTL is how long an issued credential stays valid.
const TokenTTL = 12 * time.Hour

// Identity is the verified content of a credential.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Service signs credentials with a shared HMAC secret.
type Service struct {
	secret []byte
	clock  clockwork.Clock
	parser *jwt.Parser
}

func NewService(secret []byte, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		secret: secret,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// IssueToken returns a credential for the worker. It never carries password material.
func (s *Service) IssueToken(id int64, username, email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("auth: empty signing secret")
	}
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"id":       id,
		"username": username,
		"email":    email,
		"iat":      now.Unix(),
		"exp":      now.Add(TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken returns the identity inside token, or false when the token is
// empty, malformed, signed with another key or algorithm, or expired.
func (s *Service) VerifyToken(token string) (*Identity, bool) {
	if token == "" || len(s.secret) == 0 {
		return nil, false
	}
	claims := jwt.MapClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, false
	}
	id, ok := claims["id"].(float64)
	if !ok {
		return nil, false
	}
	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	return &Identity{ID: int64(id), Username: username, Email: email}, true
}
