// ABOUTME: HS256 session tokens for the local web-auth endpoints
// ABOUTME: Generates and verifies JWTs and tracks signed-out tokens by jti

package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
	ErrMissingClaim = errors.New("missing required claim")
)

// SessionTokens issues and verifies session JWTs.
// Signout adds the token's jti to an in-memory revocation set; revoked
// entries are dropped once the token would have expired anyway.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry
}

// NewSessionTokens creates a token issuer with the given secret and TTL.
// An empty secret selects a random per-process secret, which invalidates
// all sessions on restart.
func NewSessionTokens(secret []byte, ttl time.Duration) *SessionTokens {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &SessionTokens{
		secret:  secret,
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

// Generate creates a session token for the given user ID
func (t *SessionTokens) Generate(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a session token and returns the user ID from "sub"
func (t *SessionTokens) Verify(tokenString string) (string, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", err
	}

	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return "", fmt.Errorf("%w: jti", ErrMissingClaim)
	}
	if t.isRevoked(jti) {
		return "", ErrRevokedToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Revoke invalidates a session token. Already-invalid tokens are an error;
// revoking twice is a no-op.
func (t *SessionTokens) Revoke(tokenString string) error {
	claims, err := t.parse(tokenString)
	if err != nil {
		return err
	}

	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return fmt.Errorf("%w: jti", ErrMissingClaim)
	}

	expiry := time.Now().Add(t.ttl)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	t.revoked[jti] = expiry
	return nil
}

// parse validates the signature and expiry and returns the claims
func (t *SessionTokens) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *SessionTokens) isRevoked(jti string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, revoked := t.revoked[jti]
	return revoked
}

// pruneLocked drops revocation entries for tokens that have expired.
// Callers must hold t.mu.
func (t *SessionTokens) pruneLocked() {
	now := time.Now()
	for jti, expiry := range t.revoked {
		if now.After(expiry) {
			delete(t.revoked, jti)
		}
	}
}
