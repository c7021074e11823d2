// Package auth - jwt.go issues and verifies the HS256 session tokens.
//
// The signing secret comes from APV_JWT_SECRET and is pinned for the process
// by ValidateJWTSecret at startup. In debug runs a missing secret is replaced
// with a random per-process one so local setups work without configuration;
// such sessions do not survive a restart.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "apivault"

// minSecretLen is the shortest APV_JWT_SECRET accepted outside debug mode
const minSecretLen = 32

var (
	secretMu   sync.RWMutex
	signingKey []byte
)

// Claims carries the session identity inside the signed token
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func debugMode() bool {
	if v := os.Getenv("DEV_MODE"); v == "true" || v == "1" {
		return true
	}
	return os.Getenv("GIN_MODE") == "debug"
}

// ValidateJWTSecret loads APV_JWT_SECRET and pins it as the signing key.
// Call at startup; once a key is pinned, later calls are no-ops.
func ValidateJWTSecret() error {
	secretMu.Lock()
	defer secretMu.Unlock()
	if signingKey != nil {
		return nil
	}

	secret := os.Getenv("APV_JWT_SECRET")
	switch {
	case secret == "" && debugMode():
		buf := make([]byte, minSecretLen)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate a debug signing secret: %w", err)
		}
		signingKey = []byte(hex.EncodeToString(buf))
		slog.Warn("APV_JWT_SECRET not set; using a generated secret, sessions will not survive a restart")
	case secret == "":
		return errors.New("APV_JWT_SECRET is required; generate one with: openssl rand -hex 32")
	case len(secret) < minSecretLen:
		return fmt.Errorf("APV_JWT_SECRET must be at least %d characters, got %d", minSecretLen, len(secret))
	default:
		signingKey = []byte(secret)
	}
	return nil
}

// GetJWTSecret returns the pinned signing key, pinning it first when startup
// did not (tests construct handlers directly). Panics when no usable secret
// exists; signing tokens without one is never acceptable.
func GetJWTSecret() string {
	secretMu.RLock()
	key := signingKey
	secretMu.RUnlock()
	if key != nil {
		return string(key)
	}
	if err := ValidateJWTSecret(); err != nil {
		panic(err)
	}
	secretMu.RLock()
	defer secretMu.RUnlock()
	return string(signingKey)
}

// GenerateJWT signs a session token for the user, valid for expiresIn
func GenerateJWT(userID, email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT verifies the signature, expiry, and issuer of a session token
// and returns its claims
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(GetJWTSecret()), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
