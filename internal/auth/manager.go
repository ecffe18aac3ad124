// Package auth manages Spotify credentials: the OAuth link flow and
// the access-token refresh lifecycle.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/metrics"
)

// DefaultTokenURL is the Spotify accounts token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// FreshnessMargin is how close to expiry a token may get before it is
// treated as stale. The margin absorbs clock skew and in-flight request
// latency.
const FreshnessMargin = 5 * time.Minute

// Sentinel errors.
var (
	// ErrAuthExpired is returned when the access token has expired and
	// no refresh token is available. The user must re-authenticate.
	ErrAuthExpired = errors.New("spotify authorization expired")

	// ErrRefreshFailed is returned when the refresh exchange fails.
	// Callers must not retry; the user must re-authenticate.
	ErrRefreshFailed = errors.New("refreshing spotify token failed")
)

// AccountStore persists refreshed token pairs.
type AccountStore interface {
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
}

// Manager decides when an access token must be refreshed and performs
// the refresh-token grant against the Spotify accounts service.
type Manager struct {
	store        AccountStore
	rest         *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	now          func() time.Time
	log          *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTokenURL overrides the token endpoint, mainly for tests.
func WithTokenURL(u string) ManagerOption {
	return func(m *Manager) { m.tokenURL = u }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a token lifecycle manager.
func NewManager(store AccountStore, clientID, clientSecret string, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		rest:         resty.New().SetTimeout(10 * time.Second),
		tokenURL:     DefaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tokenResponse is the accounts-service response to a token grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// EnsureFreshToken returns a valid access token for the account,
// refreshing it first when it is stale. A token is stale if its expiry
// is unset or falls within FreshnessMargin from now.
//
// On refresh the account's token pair is persisted before returning; if
// the provider rotates the refresh token, the stored one is replaced,
// otherwise it is kept.
func (m *Manager) EnsureFreshToken(ctx context.Context, account *db.Account) (string, error) {
	if !m.isStale(account) {
		return account.AccessToken, nil
	}

	if account.RefreshToken == "" {
		if m.isExpired(account) {
			return "", ErrAuthExpired
		}
		// Inside the safety margin but still valid, and nothing we can
		// do about it without a refresh token.
		return account.AccessToken, nil
	}

	m.log.Info("refreshing spotify access token",
		slog.String("user_id", account.UserID.String()))

	var tr tokenResponse
	resp, err := m.rest.R().
		SetContext(ctx).
		SetBasicAuth(m.clientID, m.clientSecret).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": account.RefreshToken,
		}).
		SetResult(&tr).
		Post(m.tokenURL)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if resp.IsError() {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode())
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: malformed token response", ErrRefreshFailed)
	}

	expiresAt := m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	account.AccessToken = tr.AccessToken
	account.TokenExpiresAt = &expiresAt
	if tr.RefreshToken != "" {
		// Refresh-token rotation: not all providers return one.
		account.RefreshToken = tr.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, account.UserID, account.AccessToken, account.RefreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return account.AccessToken, nil
}

func (m *Manager) isStale(account *db.Account) bool {
	if account.TokenExpiresAt == nil {
		return true
	}
	return account.TokenExpiresAt.Before(m.now().Add(FreshnessMargin))
}

func (m *Manager) isExpired(account *db.Account) bool {
	if account.TokenExpiresAt == nil {
		return true
	}
	return account.TokenExpiresAt.Before(m.now())
}
