package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plugboard/plugboard/pkg/store"
)

const (
	// TokenPrefix identifies plugboard bearer tokens.
	TokenPrefix = "pb_"
	// tokenBytes is the number of random bytes per token (256 bits).
	tokenBytes = 32

	tokensCollection = "tokens"
)

// ErrInvalidToken is returned for tokens that are malformed, unknown,
// or revoked.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and resolves opaque bearer tokens. Only the
// SHA256 hash of a token is stored; the raw token is shown once, at
// issue time.
type TokenManager struct {
	store store.Store
}

// NewTokenManager creates a token manager backed by the entity store.
func NewTokenManager(st store.Store) *TokenManager {
	return &TokenManager{store: st}
}

// Issue creates a token bound to a user id and returns the raw token.
func (tm *TokenManager) Issue(ctx context.Context, userID string) (string, error) {
	randomBytes := make([]byte, tokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)

	_, err := tm.store.Insert(ctx, tokensCollection, []store.Record{{
		"hash":      hashToken(token),
		"userId":    userID,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a raw token to the user id it was issued for.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (string, error) {
	if err := validateTokenFormat(token); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	rec, err := tm.store.FindOne(ctx, tokensCollection, store.Filter{"hash": hashToken(token)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return rec.GetString("userId"), nil
}

// RevokeUser deletes every token issued to the given user ids. It is
// registered as a deletion hook so removed accounts lose API access
// immediately.
func (tm *TokenManager) RevokeUser(ctx context.Context, userIDs []string) error {
	_, err := tm.store.Delete(ctx, tokensCollection, store.Filter{"userId": userIDs})
	return err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}
