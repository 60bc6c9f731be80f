package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/workmate/internal/db"
)

// ErrInvalidToken is returned for unknown or expired API tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Token is a stored API token. The plaintext is only available at creation.
type Token struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokenStore maps bearer tokens to user ids.
type TokenStore struct {
	db *db.DB
}

// NewTokenStore creates a token store backed by the api_tokens table.
func NewTokenStore(database *db.DB) *TokenStore {
	return &TokenStore{db: database}
}

// Create issues a new token for userID and returns the plaintext value once.
// A zero ttl means the token never expires.
func (s *TokenStore) Create(ctx context.Context, userID, name string, ttl time.Duration) (string, *Token, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}
	plaintext := "wm_" + hex.EncodeToString(raw)

	tok := Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	var expires sql.NullTime
	if ttl > 0 {
		t := tok.CreatedAt.Add(ttl)
		tok.ExpiresAt = &t
		expires = sql.NullTime{Time: t, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (id, user_id, name, token_hash, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.UserID, tok.Name, hashToken(plaintext), tok.CreatedAt, expires,
	)
	if err != nil {
		return "", nil, fmt.Errorf("inserting token: %w", err)
	}
	return plaintext, &tok, nil
}

// Resolve returns the user id owning the plaintext token.
func (s *TokenStore) Resolve(ctx context.Context, plaintext string) (string, error) {
	var userID string
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM api_tokens WHERE token_hash = ?`, hashToken(plaintext),
	).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("looking up token: %w", err)
	}
	if expires.Valid && time.Now().After(expires.Time) {
		return "", ErrInvalidToken
	}

	s.db.ExecContext(ctx, `UPDATE api_tokens SET last_used = ? WHERE token_hash = ?`, time.Now().UTC(), hashToken(plaintext))
	return userID, nil
}

// Revoke deletes a token by id.
func (s *TokenStore) Revoke(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
