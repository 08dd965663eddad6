// Package session owns the client-side credentials: the bearer token pair and
// the development role override, both persisted in a storage.KV.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sesamum.org/internal/auth"
	"sesamum.org/internal/obs"
	"sesamum.org/internal/storage"
	"sesamum.org/internal/stream"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyDevRole      = "dev_role"
)

// DevUser is the identity used when the development fallback is enabled and
// no token is stored.
var DevUser = auth.Actor{
	UserID:    1,
	Name:      "Admin User",
	Email:     "admin@sesamum.com",
	Role:      auth.RoleAdmin,
	CompanyID: ptr(int64(1)),
}

func ptr[T any](v T) *T { return &v }

// LogoutEvent is broadcast whenever tokens are dropped by Logout.
type LogoutEvent struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Session reads and writes credentials. Every call goes to storage, so
// several processes sharing a backend observe each other's writes.
type Session struct {
	kv           storage.KV
	allowDevUser bool
	now          func() time.Time
	logouts      *stream.Hub[LogoutEvent]
}

type Option func(*Session)

// WithDevUser enables the DevUser fallback for unauthenticated sessions.
func WithDevUser(enabled bool) Option {
	return func(s *Session) { s.allowDevUser = enabled }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Session) {
		if fn != nil {
			s.now = fn
		}
	}
}

func New(kv storage.KV, opts ...Option) *Session {
	s := &Session{
		kv:      kv,
		now:     time.Now,
		logouts: stream.New[LogoutEvent](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTokens stores a fresh token pair. An empty refresh token leaves the
// stored one untouched.
func (s *Session) SetTokens(ctx context.Context, access, refresh string) error {
	access = strings.TrimSpace(access)
	if access == "" {
		return fmt.Errorf("%w: access token is required", auth.ErrInvalidInput)
	}
	if err := s.kv.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if refresh = strings.TrimSpace(refresh); refresh != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
	}
	return nil
}

func (s *Session) AccessToken(ctx context.Context) (string, bool) {
	return s.get(ctx, KeyAccessToken)
}

func (s *Session) RefreshToken(ctx context.Context) (string, bool) {
	return s.get(ctx, KeyRefreshToken)
}

// IsAuthenticated reports whether an access token is stored.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.AccessToken(ctx)
	return ok
}

// ClearTokens removes both tokens without notifying subscribers.
func (s *Session) ClearTokens(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAccessToken); err != nil {
		return fmt.Errorf("clear access token: %w", err)
	}
	if err := s.kv.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Logout clears the tokens and tells every subscriber. The event is
// delivered even when clearing fails.
func (s *Session) Logout(ctx context.Context, reason string) error {
	err := s.ClearTokens(ctx)
	if err != nil {
		obs.Error("session logout: clear tokens failed", map[string]any{"err": err})
	}
	obs.Info("session logout", map[string]any{"reason": reason})
	s.logouts.Publish(LogoutEvent{Reason: reason, At: s.now().UTC()})
	return err
}

// Logouts subscribes to logout broadcasts until ctx ends.
func (s *Session) Logouts(ctx context.Context) <-chan LogoutEvent {
	return s.logouts.Subscribe(ctx)
}

// DevRole returns the stored override, or "" when none is set or the
// stored value is not a known role.
func (s *Session) DevRole(ctx context.Context) auth.Role {
	raw, ok := s.get(ctx, KeyDevRole)
	if !ok {
		return ""
	}
	role, err := auth.ParseRole(raw)
	if err != nil {
		obs.Warn("session: ignoring stored dev role", map[string]any{"value": raw})
		return ""
	}
	return role
}

// SetDevRole persists the override; an empty role removes it.
func (s *Session) SetDevRole(ctx context.Context, role string) error {
	if strings.TrimSpace(role) == "" {
		if err := s.kv.Delete(ctx, KeyDevRole); err != nil {
			return fmt.Errorf("clear dev role: %w", err)
		}
		return nil
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyDevRole, string(r)); err != nil {
		return fmt.Errorf("store dev role: %w", err)
	}
	return nil
}

// Actor returns the current identity with the dev override applied. The
// token is decoded without verification; the API enforces its signature.
// Expired or undecodable tokens yield nil unless the dev fallback applies.
func (s *Session) Actor(ctx context.Context) *auth.Actor {
	var actor *auth.Actor
	if token, ok := s.AccessToken(ctx); ok && !auth.IsExpired(token, s.now()) {
		if claims, err := auth.DecodeClaims(token); err == nil {
			actor = claims.Actor()
		}
	}
	if actor == nil {
		if !s.allowDevUser {
			return nil
		}
		dev := DevUser
		dev.CompanyID = ptr(*DevUser.CompanyID)
		actor = &dev
	}
	actor.Role = auth.ResolveRole(actor.Role, s.DevRole(ctx))
	return actor
}

func (s *Session) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		obs.Error("session read failed", map[string]any{"key": key, "err": err})
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
