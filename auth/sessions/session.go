package sessions

import "time"

// AuthInfo holds the provider credentials established at login. Only
// AccessToken is ever rewritten afterwards, by the token-refresh observer;
// the remaining fields are immutable for the life of the session.
type AuthInfo struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	InstanceURL    string `json:"instance_url"`
	UserID         string `json:"user_id"`         // Provider user ID
	OrganizationID string `json:"organization_id"` // Provider org ID
}

// UserProjection caches the resolved application user. Points and Rank are
// pointers so sessions written before score caching existed can be told apart
// from sessions with a genuine zero score; the two fields are always written
// together.
type UserProjection struct {
	DBID        int64  `json:"db_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Points      *int   `json:"points,omitempty"`
	Rank        *int   `json:"rank,omitempty"`
}

// Session is the per-client server-side store. Auth and User are both set by
// a successful login and both discarded by logout; a session with only one of
// them is a bug.
type Session struct {
	ID        string          `json:"id"`
	Auth      *AuthInfo       `json:"auth,omitempty"`
	User      *UserProjection `json:"user,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Authenticated reports whether the session carries a full login.
func (s *Session) Authenticated() bool {
	return s != nil && s.Auth != nil && s.User != nil
}

// Clone returns a deep copy so callers never alias stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	if s.Auth != nil {
		auth := *s.Auth
		copied.Auth = &auth
	}
	if s.User != nil {
		user := *s.User
		if s.User.Points != nil {
			points := *s.User.Points
			user.Points = &points
		}
		if s.User.Rank != nil {
			rank := *s.User.Rank
			user.Rank = &rank
		}
		copied.User = &user
	}
	return &copied
}
