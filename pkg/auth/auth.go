// Package auth guards routes behind a bearer token whose bcrypt hash is
// configured, so the token itself never appears in the environment.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned by Verify for a missing or wrong token.
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks bearer tokens.
type Verifier interface {
	// Enabled reports whether a token is required at all.
	Enabled() bool
	Verify(token string) error
}

// verifier implements Verifier.
type verifier struct {
	log  logrus.FieldLogger
	hash []byte

	// accepted caches the sha256 of tokens that passed bcrypt, so a valid
	// client pays the bcrypt cost once per process.
	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]struct{}
}

// Ensure verifier implements Verifier.
var _ Verifier = (*verifier)(nil)

// NewVerifier creates a verifier for a bcrypt hash. An empty hash disables
// verification.
func NewVerifier(log logrus.FieldLogger, hash string) (Verifier, error) {
	v := &verifier{
		log:      log.WithField("component", "auth"),
		accepted: make(map[[sha256.Size]byte]struct{}, 4),
	}

	if hash == "" {
		return v, nil
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return nil, fmt.Errorf("parsing token hash: %w", err)
	}

	v.hash = []byte(hash)
	v.log.WithField("cost", cost).Info("Bearer token required for protected routes")

	return v, nil
}

// Enabled reports whether a hash is configured.
func (v *verifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify returns nil when token matches the configured hash, or when
// verification is disabled.
func (v *verifier) Verify(token string) error {
	if !v.Enabled() {
		return nil
	}

	if token == "" {
		return ErrInvalidToken
	}

	key := sha256.Sum256([]byte(token))

	v.mu.RLock()
	_, ok := v.accepted[key]
	v.mu.RUnlock()

	if ok {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}

	v.mu.Lock()
	v.accepted[key] = struct{}{}
	v.mu.Unlock()

	return nil
}

// GenerateToken generates a cryptographically secure random token.
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)

	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(bytes), nil
}

// HashToken returns the bcrypt hash of token. A cost of 0 uses bcrypt's default.
func HashToken(token string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}

	return string(hash), nil
}
