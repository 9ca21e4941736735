package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/loomline/designvault/pkg/redis"
)

const revokedMarker = "1"

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	RevokedAccessKey(accessID string) string
}

// Manager tracks access tokens revoked before their natural expiry. Tokens
// are issued by the identity provider, so the API only needs a deny list.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	now   func() time.Time
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client, now: time.Now}, nil
}

func (m *Manager) key(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", errors.New("access id is required")
	}
	return m.keyer.RevokedAccessKey(accessID), nil
}

// Revoke denies the access id until expiresAt. Already expired tokens need no entry.
func (m *Manager) Revoke(ctx context.Context, accessID string, expiresAt time.Time) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	if ttl := expiresAt.Sub(m.now()); ttl > 0 {
		return m.store.Set(ctx, key, revokedMarker, ttl)
	}
	return nil
}

// HasSession reports whether the access id is still honored, i.e. has no
// deny-list entry.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	key, err := m.key(accessID)
	if err != nil {
		return false, err
	}
	_, err = m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redislib.Nil):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return false, nil
}
