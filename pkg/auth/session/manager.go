package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/stmary/giftshop-backend/pkg/config"
	redisclient "github.com/stmary/giftshop-backend/pkg/redis"
)

const (
	refreshTokenBytes = 32
	tokenSeparator    = "."
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// Issued is the result of opening or rotating a session.
// RefreshToken embeds the access id so refresh needs no other input.
type Issued struct {
	AccessID     string
	UserID       uuid.UUID
	RefreshToken string
}

type record struct {
	UserID uuid.UUID `json:"user_id"`
	Secret string    `json:"secret"`
}

// Manager handles refresh token creation, storage, and rotation.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, keyer: client, ttl: ttl}, nil
}

// Open starts a session for userID and returns the new access id plus refresh token.
func (m *Manager) Open(ctx context.Context, userID uuid.UUID) (Issued, error) {
	if userID == uuid.Nil {
		return Issued{}, fmt.Errorf("user id is required")
	}
	return m.issue(ctx, userID)
}

// Rotate consumes a refresh token and issues a replacement session for the same user.
// A token can be rotated once; replaying it fails with ErrInvalidRefreshToken.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (Issued, error) {
	accessID, secret, ok := splitToken(refreshToken)
	if !ok {
		return Issued{}, ErrInvalidRefreshToken
	}

	raw, err := m.store.GetDel(ctx, m.keyer.AccessSessionKey(accessID))
	if err != nil {
		return Issued{}, wrapNotFound(err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Issued{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) != 1 {
		return Issued{}, ErrInvalidRefreshToken
	}
	return m.issue(ctx, rec.UserID)
}

// Revoke deletes the refresh mapping tied to the access identifier.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.keyer.AccessSessionKey(accessID))
}

// HasSession reports whether the provided access ID still has an active refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) issue(ctx context.Context, userID uuid.UUID) (Issued, error) {
	secret, err := generateSecret()
	if err != nil {
		return Issued{}, err
	}
	accessID := NewAccessID()
	payload, err := json.Marshal(record{UserID: userID, Secret: secret})
	if err != nil {
		return Issued{}, err
	}
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(accessID), payload, m.ttl); err != nil {
		return Issued{}, err
	}
	return Issued{
		AccessID:     accessID,
		UserID:       userID,
		RefreshToken: accessID + tokenSeparator + secret,
	}, nil
}

// NewAccessID produces the identifier used as the JWT jti and Redis key.
func NewAccessID() string {
	return uuid.NewString()
}

func splitToken(token string) (string, string, bool) {
	accessID, secret, found := strings.Cut(strings.TrimSpace(token), tokenSeparator)
	if !found || accessID == "" || secret == "" {
		return "", "", false
	}
	if _, err := uuid.Parse(accessID); err != nil {
		return "", "", false
	}
	return accessID, secret, true
}

func generateSecret() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}
