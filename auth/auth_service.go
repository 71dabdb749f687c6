package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/forcerank/forcerank/auth/sessions"
	"github.com/forcerank/forcerank/internal/metrics"
	"github.com/forcerank/forcerank/salesforce"
	"github.com/forcerank/forcerank/users"
	"github.com/rs/zerolog/log"
)

// Provider is the OAuth2 client capability the service consumes. It is
// satisfied by *salesforce.Client through NewProvider.
type Provider interface {
	AuthorizationURL(state string) string
	Authorize(ctx context.Context, code string) (*salesforce.AuthResult, error)
	Connection(creds salesforce.Credentials, onRefresh salesforce.RefreshFunc) Connection
}

// Connection is the subset of a provider connection the service uses.
type Connection interface {
	Identity(ctx context.Context) (*salesforce.Identity, error)
}

type providerAdapter struct {
	client *salesforce.Client
}

// NewProvider wraps the concrete Salesforce client in the Provider interface.
func NewProvider(client *salesforce.Client) Provider {
	return providerAdapter{client: client}
}

func (p providerAdapter) AuthorizationURL(state string) string {
	return p.client.AuthorizationURL(state)
}

func (p providerAdapter) Authorize(ctx context.Context, code string) (*salesforce.AuthResult, error) {
	return p.client.Authorize(ctx, code)
}

func (p providerAdapter) Connection(creds salesforce.Credentials, onRefresh salesforce.RefreshFunc) Connection {
	return p.client.Connection(creds, onRefresh)
}

// AuthService owns login, logout, and the synchronization between sessions
// and the user store.
type AuthService struct {
	provider Provider
	users    users.Repository
	sessions sessions.Repo
}

func NewAuthService(provider Provider, userRepo users.Repository, sessionRepo sessions.Repo) (*AuthService, error) {
	if provider == nil {
		return nil, fmt.Errorf("[NewAuthService] provider is required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("[NewAuthService] user repository is required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("[NewAuthService] session repository is required")
	}
	return &AuthService{provider: provider, users: userRepo, sessions: sessionRepo}, nil
}

// LoginURL builds the provider authorization URL. The state carries the path
// to resume after login and comes back through the callback untouched.
func (s *AuthService) LoginURL(state string) string {
	return s.provider.AuthorizationURL(state)
}

// Logout destroys the session, credentials and projection together.
// Destroying an absent session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	log.Debug().Str("session_id", sessionID).Msg("destroying session")
	return s.sessions.Delete(ctx, sessionID)
}

// Connection builds a provider connection bound to the session's credentials.
// Token rotations observed by the connection are written back to the session
// before the triggering provider call returns, so the session never serves a
// stale token after such a call. Only the access token is touched.
func (s *AuthService) Connection(ctx context.Context, sessionID string) (Connection, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, newAuthError(ErrSessionAbsent, "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Auth == nil {
		return nil, newAuthError(ErrSessionAbsent, "", nil)
	}

	creds := salesforce.Credentials{
		AccessToken:    session.Auth.AccessToken,
		RefreshToken:   session.Auth.RefreshToken,
		InstanceURL:    session.Auth.InstanceURL,
		UserID:         session.Auth.UserID,
		OrganizationID: session.Auth.OrganizationID,
	}
	return s.provider.Connection(creds, func(accessToken string) {
		metrics.TokenRefreshes.Inc()
		if err := s.sessions.UpdateAccessToken(ctx, sessionID, accessToken); err != nil {
			log.Err(err).Str("session_id", sessionID).Msg("failed to store rotated access token")
		}
	}), nil
}
