package sessions

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory Repo backed by a TTL cache. The mutex covers
// the read-modify-write of the field-scoped updates; individual cache
// operations are already safe.
type InMemoryRepo struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewInMemoryRepo creates an in-memory session repository. Sessions expire
// after ttl; ttl <= 0 means sessions never expire.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &InMemoryRepo{cache: gocache.New(ttl, 10*time.Minute)}
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Session, error) {
	value, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	return value.(*Session).Clone(), nil
}

func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, session *Session) error {
	r.cache.SetDefault(sessionID, session.Clone())
	return nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}

func (r *InMemoryRepo) UpdateAccessToken(_ context.Context, sessionID, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.cache.Get(sessionID)
	if !ok {
		return ErrNotFound
	}
	session := value.(*Session)
	if session.Auth == nil {
		return ErrNotFound
	}

	updated := session.Clone()
	updated.Auth.AccessToken = accessToken
	r.cache.SetDefault(sessionID, updated)
	return nil
}

func (r *InMemoryRepo) UpdateScore(_ context.Context, sessionID string, points, rank int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.cache.Get(sessionID)
	if !ok {
		return ErrNotFound
	}
	session := value.(*Session)
	if session.User == nil {
		return ErrNotFound
	}

	updated := session.Clone()
	updated.User.Points = &points
	updated.User.Rank = &rank
	r.cache.SetDefault(sessionID, updated)
	return nil
}
