package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/forcerank/forcerank/auth/sessions"
	"github.com/forcerank/forcerank/internal/metrics"
)

// UserInfo is the JSON shape served to the UI.
type UserInfo struct {
	LoggedIn    bool   `json:"loggedIn"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"userDisplayName,omitempty"`
	Points      int    `json:"points,omitempty"`
	Rank        int    `json:"rank,omitempty"`
	InstanceURL string `json:"instanceUrl,omitempty"`
}

// GetUserInfo reads the cached projection. Anonymous or half-missing sessions
// yield {loggedIn:false} without touching the user store. Sessions written
// before scores were cached lack points; those are resolved once, written back
// as points+rank in one update, and served from the session afterwards.
func (s *AuthService) GetUserInfo(ctx context.Context, sessionID string) (UserInfo, error) {
	if sessionID == "" {
		return UserInfo{}, nil
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return UserInfo{}, nil
	}
	if err != nil {
		return UserInfo{}, fmt.Errorf("load session: %w", err)
	}
	if !session.Authenticated() {
		return UserInfo{}, nil
	}

	user := session.User
	if user.Points == nil || user.Rank == nil {
		record, err := s.users.CreateOrGetUserRecord(ctx, user.Username, user.Email)
		if err != nil {
			return UserInfo{}, newAuthError(ErrUserResolution, "user record lookup failed", err)
		}
		rank, err := s.users.PercentileRank(ctx, record.Points)
		if err != nil {
			return UserInfo{}, newAuthError(ErrUserResolution, "percentile rank lookup failed", err)
		}
		if err := s.sessions.UpdateScore(ctx, sessionID, record.Points, rank); err != nil {
			return UserInfo{}, fmt.Errorf("backfill session score: %w", err)
		}

		points := record.Points
		user.Points = &points
		user.Rank = &rank
		metrics.SessionRepairs.Inc()
	}

	return UserInfo{
		LoggedIn:    true,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Points:      *user.Points,
		Rank:        *user.Rank,
		InstanceURL: session.Auth.InstanceURL,
	}, nil
}

// UpdatePoints recomputes the rank for the new point total and overwrites
// points and rank together, never one without the other.
func (s *AuthService) UpdatePoints(ctx context.Context, sessionID string, points int) error {
	rank, err := s.users.PercentileRank(ctx, points)
	if err != nil {
		return newAuthError(ErrUserResolution, "percentile rank lookup failed", err)
	}
	return s.sessions.UpdateScore(ctx, sessionID, points, rank)
}

// DBUserID returns the database ID of the session's user, null-safe at every
// level of session absence.
func (s *AuthService) DBUserID(ctx context.Context, sessionID string) (int64, bool) {
	if sessionID == "" {
		return 0, false
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil || session.User == nil || session.User.DBID == 0 {
		return 0, false
	}
	return session.User.DBID, true
}
