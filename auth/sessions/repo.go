package sessions

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session (or the part of it a field update
// targets) does not exist.
var ErrNotFound = errors.New("session not found")

// Repo defines session storage. Upsert writes the whole session in one
// operation so a login is never observable half-populated. The Update methods
// are deliberately field-scoped: concurrent refresh and repair writers touch
// disjoint fields and never need to merge multi-field state.
type Repo interface {
	// Get retrieves a session by ID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Upsert creates or replaces a session atomically.
	Upsert(ctx context.Context, sessionID string, session *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// UpdateAccessToken overwrites only Auth.AccessToken, last writer wins.
	UpdateAccessToken(ctx context.Context, sessionID, accessToken string) error

	// UpdateScore overwrites User.Points and User.Rank together.
	UpdateScore(ctx context.Context, sessionID string, points, rank int) error
}
