package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const resetKeyPrefix = "password_reset:"

var ErrResetTokenNotFound = errors.New("reset token not found or expired")

// ResetTokenStore keeps password reset tokens in Redis. Only the SHA-256 of a
// token is stored; the raw token lives in the emailed link.
type ResetTokenStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewResetTokenStore(client *redis.Client, ttl time.Duration) *ResetTokenStore {
	return &ResetTokenStore{Client: client, TTL: ttl}
}

// NewResetToken returns 32 random bytes, hex encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func resetKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return resetKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *ResetTokenStore) Save(ctx context.Context, token, userID string) error {
	if err := s.Client.Set(ctx, resetKey(token), userID, s.TTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

// Consume returns the user id for token and deletes it, so a token works once.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.Client.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrResetTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}
