package auth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/forcerank/forcerank/auth/sessions"
	"github.com/forcerank/forcerank/internal/metrics"
	"github.com/forcerank/forcerank/salesforce"
	"github.com/rs/zerolog/log"
)

// HandleCallback finishes the authorization-code flow: exchange the code,
// fetch the provider identity, resolve the application user record, compute
// the percentile rank, and populate the session in a single write. It returns
// the percent-decoded redirect path carried by state, "" when state was
// absent. The session is only mutated once every upstream step has succeeded.
func (s *AuthService) HandleCallback(ctx context.Context, sessionID string, query, form url.Values) (string, error) {
	param := func(name string) string {
		if v := query.Get(name); v != "" {
			return v
		}
		return form.Get(name)
	}

	code := param("code")
	oauthError := param("error")
	errorDescription := param("error_description")
	state := param("state")

	if oauthError != "" {
		metrics.LoginFailures.WithLabelValues("denied").Inc()
		log.Warn().Str("error", oauthError).Str("description", errorDescription).Msg("authorization denied by provider")
		if errorDescription == "" {
			errorDescription = oauthError
		}
		return "", newAuthError(ErrAuthorizationDenied, errorDescription, nil)
	}
	if code == "" {
		metrics.LoginFailures.WithLabelValues("no_code").Inc()
		return "", newAuthError(ErrMissingCode, "authorization code missing from callback", nil)
	}

	redirectPath := state
	if state != "" {
		if decoded, err := url.QueryUnescape(state); err == nil {
			redirectPath = decoded
		}
	}

	result, err := s.provider.Authorize(ctx, code)
	if err != nil {
		metrics.LoginFailures.WithLabelValues("exchange").Inc()
		return "", fmt.Errorf("authorize code: %w", err)
	}

	conn := s.provider.Connection(salesforce.Credentials{
		AccessToken:    result.AccessToken,
		RefreshToken:   result.RefreshToken,
		InstanceURL:    result.InstanceURL,
		UserID:         result.UserID,
		OrganizationID: result.OrganizationID,
	}, nil)

	identity, err := conn.Identity(ctx)
	if err != nil {
		metrics.LoginFailures.WithLabelValues("identity").Inc()
		return "", newAuthError(ErrIdentityFetch, "could not fetch provider identity", err)
	}

	record, err := s.users.CreateOrGetUserRecord(ctx, identity.Username, identity.Email)
	if err != nil {
		metrics.LoginFailures.WithLabelValues("user_record").Inc()
		return "", newAuthError(ErrUserResolution, "user record lookup failed", err)
	}
	rank, err := s.users.PercentileRank(ctx, record.Points)
	if err != nil {
		metrics.LoginFailures.WithLabelValues("user_record").Inc()
		return "", newAuthError(ErrUserResolution, "percentile rank lookup failed", err)
	}

	points := record.Points
	session := &sessions.Session{
		ID: sessionID,
		Auth: &sessions.AuthInfo{
			AccessToken:    result.AccessToken,
			RefreshToken:   result.RefreshToken,
			InstanceURL:    result.InstanceURL,
			UserID:         result.UserID,
			OrganizationID: result.OrganizationID,
		},
		User: &sessions.UserProjection{
			DBID:        record.ID,
			Username:    identity.Username,
			DisplayName: identity.DisplayName,
			Email:       identity.Email,
			Points:      &points,
			Rank:        &rank,
		},
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Upsert(ctx, sessionID, session); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	metrics.Logins.Inc()
	log.Info().Str("username", identity.Username).Int64("db_id", record.ID).Msg("login complete")
	return redirectPath, nil
}
