package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/pkg/apierror"
)

const (
	// SessionPrefix is the prefix for all session tokens.
	SessionPrefix = "srs_"

	// DefaultSessionTTL is used when no TTL is configured.
	DefaultSessionTTL = 24 * time.Hour

	sessionKeyPrefix = "session:"
)

// ErrSessionInvalid is wrapped by every Validate failure.
var ErrSessionInvalid = apierror.Unauthorized("session expired or invalid")

// SessionService issues and checks login session tokens stored in the cache.
type SessionService struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService creates a session service. A non-positive ttl means
// DefaultSessionTTL.
func NewSessionService(c cache.Cache, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{cache: c, ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for user and returns its token.
func (s *SessionService) Create(ctx context.Context, user *model.User) (string, *model.SessionData, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := SessionPrefix + hex.EncodeToString(tokenBytes)

	now := s.now()
	data := &model.SessionData{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+token, jsonData, s.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("session created", "user_id", user.ID, "role", user.Role, "expires", data.ExpiresAt)
	return token, data, nil
}

// Validate returns the session data for token.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.SessionData, error) {
	if !strings.HasPrefix(token, SessionPrefix) || len(token) == len(SessionPrefix) {
		return nil, fmt.Errorf("invalid token format: %w", ErrSessionInvalid)
	}

	key := sessionKeyPrefix + token
	jsonData, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("token not found: %w", ErrSessionInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var data model.SessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		s.cache.Delete(ctx, key)
		return nil, fmt.Errorf("corrupt session data: %w", ErrSessionInvalid)
	}

	if s.now().After(data.ExpiresAt) {
		s.cache.Delete(ctx, key)
		return nil, fmt.Errorf("token expired: %w", ErrSessionInvalid)
	}

	return &data, nil
}

// Revoke ends a session. Revoking an unknown token is not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Delete(ctx, sessionKeyPrefix+token)
}

// NeedsRefresh reports whether less than half of the session lifetime is
// left.
func (s *SessionService) NeedsRefresh(data *model.SessionData) bool {
	return data.ExpiresAt.Sub(s.now()) < s.ttl/2
}

// Refresh slides the session expiry to now+TTL.
func (s *SessionService) Refresh(ctx context.Context, token string) (*model.SessionData, error) {
	data, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	data.ExpiresAt = s.now().Add(s.ttl)
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+token, jsonData, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return data, nil
}
