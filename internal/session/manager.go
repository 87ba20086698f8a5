package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedsync/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessKey   = "access_token"
	refreshKey  = "refresh_token"
	usernameKey = "username"

	defaultLeeway = 30 * time.Second
)

var ErrNoSession = errors.New("no stored session")

// Credentials are the persisted part of an authenticated session.
type Credentials struct {
	Access   string
	Refresh  string
	Username string
}

// Manager hands out bearer tokens. Credentials are read from KV once, on first use; a
// refreshed access token is written back.
type Manager struct {
	Logger    *slog.Logger
	KV        core.KeyValue
	Refresher core.TokenRefresher

	// Leeway is how long before expiry an access token is refreshed proactively.
	Leeway time.Duration
	Now    func() time.Time

	mu     sync.Mutex
	loaded bool
	creds  Credentials
}

// AccessToken returns the current access token, refreshing it first when it is about
// to expire.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return "", err
	}

	if exp, ok := ExpiresAt(m.creds.Access); ok && !m.now().Add(m.leeway()).Before(exp) {
		m.logger().Debug("access token is about to expire, refreshing", "expires_at", exp)
		return m.refresh(ctx)
	}

	return m.creds.Access, nil
}

// Refresh exchanges the refresh token for a new access token and persists it.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return "", err
	}

	return m.refresh(ctx)
}

// Username returns the stored identity, falling back to the username claim of the
// access token.
func (m *Manager) Username(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return "", err
	}

	if m.creds.Username != "" {
		return m.creds.Username, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(m.creds.Access, claims); err == nil {
		if username, ok := claims["username"].(string); ok {
			return username, nil
		}
	}

	return "", fmt.Errorf("%w: username is unknown", ErrNoSession)
}

// Credentials returns the stored session as it is, without refreshing.
func (m *Manager) Credentials(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return Credentials{}, err
	}
	return m.creds, nil
}

// Save replaces the stored session.
func (m *Manager) Save(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if creds.Access == "" || creds.Refresh == "" {
		return errors.New("access and refresh tokens are required")
	}

	values := map[string]string{
		accessKey:   creds.Access,
		refreshKey:  creds.Refresh,
		usernameKey: creds.Username,
	}
	for key, value := range values {
		if err := m.KV.Put(ctx, key, []byte(value)); err != nil {
			return err
		}
	}

	m.creds = creds
	m.loaded = true

	return nil
}

// Clear forgets the stored session.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := errors.Join(
		m.KV.Delete(ctx, accessKey),
		m.KV.Delete(ctx, refreshKey),
		m.KV.Delete(ctx, usernameKey),
	)

	m.creds = Credentials{}
	m.loaded = false

	return err
}

func (m *Manager) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	var creds Credentials

	for key, dst := range map[string]*string{
		accessKey:   &creds.Access,
		refreshKey:  &creds.Refresh,
		usernameKey: &creds.Username,
	} {
		value, err := m.KV.Get(ctx, key)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return err
		}
		*dst = string(value)
	}

	if creds.Access == "" || creds.Refresh == "" {
		return ErrNoSession
	}

	m.creds = creds
	m.loaded = true

	m.logger().Info("session loaded", "username", creds.Username)

	return nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	if m.Refresher == nil {
		return "", fmt.Errorf("%w: no token refresher", core.ErrUnauthorized)
	}

	access, err := m.Refresher.RefreshToken(ctx, m.creds.Refresh)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	}

	if err := m.KV.Put(ctx, accessKey, []byte(access)); err != nil {
		return "", err
	}
	m.creds.Access = access

	m.logger().Info("access token refreshed")

	return access, nil
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Manager) leeway() time.Duration {
	if m.Leeway == 0 {
		return defaultLeeway
	}
	return m.Leeway
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default().With("component", "session.Manager")
	}
	return m.Logger.With("component", "session.Manager")
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature. Tokens that
// cannot be parsed or carry no exp report false.
func ExpiresAt(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
