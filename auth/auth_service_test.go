package auth_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/forcerank/forcerank/auth"
	"github.com/forcerank/forcerank/auth/sessions"
	"github.com/forcerank/forcerank/salesforce"
	"github.com/forcerank/forcerank/users"
	fakeuserrepo "github.com/forcerank/forcerank/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testSessionID   = "session-1"
	testUsername    = "lmcneil@example.com"
	testEmail       = "lmcneil@example.com"
	testDisplayName = "Lauren McNeil"
	testInstanceURL = "https://na99.salesforce.com"
	testOrgID       = "00D000000000001"
	testSFUserID    = "005000000000001"
)

var errCodeReused = errors.New("invalid grant: authorization code already used")

// fakeConnection records the refresh observer so tests can fire rotation
// events the way an expired-token API call would.
type fakeConnection struct {
	identity    *salesforce.Identity
	identityErr error
	onRefresh   salesforce.RefreshFunc
}

func (c *fakeConnection) Identity(context.Context) (*salesforce.Identity, error) {
	if c.identityErr != nil {
		return nil, c.identityErr
	}
	return c.identity, nil
}

func (c *fakeConnection) rotate(accessToken string) {
	if c.onRefresh != nil {
		c.onRefresh(accessToken)
	}
}

type fakeProvider struct {
	authResult  *salesforce.AuthResult
	authErr     error
	identity    *salesforce.Identity
	identityErr error
	usedCodes   map[string]bool
	lastConn    *fakeConnection
}

func (p *fakeProvider) AuthorizationURL(state string) string {
	return "https://login.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Authorize(_ context.Context, code string) (*salesforce.AuthResult, error) {
	if p.authErr != nil {
		return nil, p.authErr
	}
	if p.usedCodes[code] {
		return nil, errCodeReused
	}
	p.usedCodes[code] = true
	return p.authResult, nil
}

func (p *fakeProvider) Connection(_ salesforce.Credentials, onRefresh salesforce.RefreshFunc) auth.Connection {
	conn := &fakeConnection{identity: p.identity, identityErr: p.identityErr, onRefresh: onRefresh}
	p.lastConn = conn
	return conn
}

type testFixture struct {
	provider    *fakeProvider
	userRepo    *fakeuserrepo.FakeUserRepo
	sessionRepo *sessions.InMemoryRepo
	service     *auth.AuthService
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	provider := &fakeProvider{
		authResult: &salesforce.AuthResult{
			AccessToken:    "access-1",
			RefreshToken:   "refresh-1",
			InstanceURL:    testInstanceURL,
			UserID:         testSFUserID,
			OrganizationID: testOrgID,
		},
		identity: &salesforce.Identity{
			UserID:         testSFUserID,
			OrganizationID: testOrgID,
			Username:       testUsername,
			DisplayName:    testDisplayName,
			Email:          testEmail,
		},
		usedCodes: make(map[string]bool),
	}

	userRepo := fakeuserrepo.NewFakeUserRepo()
	sessionRepo := sessions.NewInMemoryRepo(0)

	service, err := auth.NewAuthService(provider, userRepo, sessionRepo)
	require.NoError(t, err)

	return &testFixture{
		provider:    provider,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		service:     service,
	}
}

func callbackParams(pairs ...string) url.Values {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], pairs[i+1])
	}
	return values
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()

	path, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc", "state", "%2Fdashboard"), url.Values{})
	require.NoError(t, err)
	require.Equal(t, "/dashboard", path)
}

func TestHandleCallbackPopulatesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.userRepo.Seed(testUsername, users.UserRecord{ID: 7, Points: 120})
	f.userRepo.RankFn = func(points int) int {
		require.Equal(t, 120, points)
		return 64
	}

	path, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc", "state", "%2Fdashboard"), url.Values{})
	require.NoError(t, err)
	require.Equal(t, "/dashboard", path)

	session, err := f.sessionRepo.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.True(t, session.Authenticated())

	require.Equal(t, "access-1", session.Auth.AccessToken)
	require.Equal(t, "refresh-1", session.Auth.RefreshToken)
	require.Equal(t, testInstanceURL, session.Auth.InstanceURL)
	require.Equal(t, testSFUserID, session.Auth.UserID)
	require.Equal(t, testOrgID, session.Auth.OrganizationID)

	require.Equal(t, int64(7), session.User.DBID)
	require.Equal(t, testUsername, session.User.Username)
	require.Equal(t, testDisplayName, session.User.DisplayName)
	require.NotNil(t, session.User.Points)
	require.NotNil(t, session.User.Rank)
	require.Equal(t, 120, *session.User.Points)
	require.Equal(t, 64, *session.User.Rank)
}

func TestHandleCallbackNoStateReturnsEmptyPath(t *testing.T) {
	f := setupTestFixture(t)

	path, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc"), url.Values{})
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestHandleCallbackQueryTakesPrecedenceOverForm(t *testing.T) {
	f := setupTestFixture(t)

	path, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc", "state", "%2Fquery"),
		callbackParams("state", "%2Fform"))
	require.NoError(t, err)
	require.Equal(t, "/query", path)
}

func TestHandleCallbackProviderDenialLeavesSessionUntouched(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc", "error", "access_denied", "error_description", "user said no"),
		url.Values{})
	require.ErrorIs(t, err, auth.ErrAuthorizationDenied)

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "user said no", authErr.Description)

	_, err = f.sessionRepo.Get(context.Background(), testSessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)
	require.Zero(t, f.userRepo.CreateCalls)
}

func TestHandleCallbackMissingCode(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("state", "%2Fdashboard"), url.Values{})
	require.ErrorIs(t, err, auth.ErrMissingCode)

	_, err = f.sessionRepo.Get(context.Background(), testSessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestHandleCallbackReusedCodePropagatesFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	_, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc"), url.Values{})
	require.ErrorIs(t, err, errCodeReused)
}

func TestHandleCallbackIdentityFailureAbortsBeforeSessionWrite(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.identityErr = errors.New("identity endpoint unavailable")

	_, err := f.service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc"), url.Values{})
	require.ErrorIs(t, err, auth.ErrIdentityFetch)

	_, err = f.sessionRepo.Get(context.Background(), testSessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)
	require.Zero(t, f.userRepo.CreateCalls)
}

func TestHandleCallbackUserResolutionFailure(t *testing.T) {
	f := setupTestFixture(t)

	boom := errors.New("user store down")
	failing := &failingUserRepo{err: boom}
	service, err := auth.NewAuthService(f.provider, failing, f.sessionRepo)
	require.NoError(t, err)

	_, err = service.HandleCallback(context.Background(), testSessionID,
		callbackParams("code", "abc"), url.Values{})
	require.ErrorIs(t, err, auth.ErrUserResolution)
	require.ErrorIs(t, err, boom)

	_, err = f.sessionRepo.Get(context.Background(), testSessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

type failingUserRepo struct {
	err error
}

func (r *failingUserRepo) CreateOrGetUserRecord(context.Context, string, string) (*users.UserRecord, error) {
	return nil, r.err
}

func (r *failingUserRepo) PercentileRank(context.Context, int) (int, error) {
	return 0, r.err
}

func TestGetUserInfoAnonymousSession(t *testing.T) {
	f := setupTestFixture(t)

	info, err := f.service.GetUserInfo(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, info.LoggedIn)
	require.Zero(t, f.userRepo.CreateCalls)
	require.Zero(t, f.userRepo.RankCalls)
}

func TestGetUserInfoServesCachedProjection(t *testing.T) {
	f := setupTestFixture(t)
	f.userRepo.Seed(testUsername, users.UserRecord{ID: 7, Points: 120})
	f.userRepo.RankFn = func(int) int { return 64 }
	f.login(t)

	createCalls := f.userRepo.CreateCalls
	info, err := f.service.GetUserInfo(context.Background(), testSessionID)
	require.NoError(t, err)
	require.True(t, info.LoggedIn)
	require.Equal(t, testUsername, info.Username)
	require.Equal(t, testDisplayName, info.DisplayName)
	require.Equal(t, 120, info.Points)
	require.Equal(t, 64, info.Rank)
	require.Equal(t, testInstanceURL, info.InstanceURL)
	require.Equal(t, createCalls, f.userRepo.CreateCalls) // no repository round trip
}

func TestGetUserInfoRepairsLegacySession(t *testing.T) {
	f := setupTestFixture(t)
	f.userRepo.Seed(testUsername, users.UserRecord{ID: 3, Points: 50})
	f.userRepo.RankFn = func(int) int { return 42 }

	// A session written before scores were cached: projection without points.
	legacy := &sessions.Session{
		ID:   testSessionID,
		Auth: &sessions.AuthInfo{AccessToken: "access-1", InstanceURL: testInstanceURL},
		User: &sessions.UserProjection{DBID: 3, Username: testUsername, Email: testEmail},
	}
	require.NoError(t, f.sessionRepo.Upsert(context.Background(), testSessionID, legacy))

	info, err := f.service.GetUserInfo(context.Background(), testSessionID)
	require.NoError(t, err)
	require.True(t, info.LoggedIn)
	require.Equal(t, 50, info.Points)
	require.Equal(t, 42, info.Rank)
	require.Equal(t, 1, f.userRepo.CreateCalls)

	session, err := f.sessionRepo.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.NotNil(t, session.User.Points)
	require.NotNil(t, session.User.Rank)
	require.Equal(t, 50, *session.User.Points)
	require.Equal(t, 42, *session.User.Rank)

	// Repair happens once; later reads are served from the session.
	_, err = f.service.GetUserInfo(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, 1, f.userRepo.CreateCalls)
}

func TestUpdatePointsRewritesPointsAndRankTogether(t *testing.T) {
	f := setupTestFixture(t)
	f.userRepo.RankFn = func(points int) int { return points / 2 }
	f.login(t)

	require.NoError(t, f.service.UpdatePoints(context.Background(), testSessionID, 200))

	session, err := f.sessionRepo.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, 200, *session.User.Points)
	require.Equal(t, 100, *session.User.Rank)
}

func TestDBUserID(t *testing.T) {
	f := setupTestFixture(t)

	_, ok := f.service.DBUserID(context.Background(), "")
	require.False(t, ok)
	_, ok = f.service.DBUserID(context.Background(), testSessionID)
	require.False(t, ok)

	f.userRepo.Seed(testUsername, users.UserRecord{ID: 7, Points: 120})
	f.login(t)

	id, ok := f.service.DBUserID(context.Background(), testSessionID)
	require.True(t, ok)
	require.Equal(t, int64(7), id)
}

func TestLogoutDestroysWholeSessionAndIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.NoError(t, f.service.Logout(context.Background(), testSessionID))

	info, err := f.service.GetUserInfo(context.Background(), testSessionID)
	require.NoError(t, err)
	require.False(t, info.LoggedIn)

	require.NoError(t, f.service.Logout(context.Background(), testSessionID))
	require.NoError(t, f.service.Logout(context.Background(), ""))
}

func TestConnectionRefreshUpdatesOnlyAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	conn, err := f.service.Connection(context.Background(), testSessionID)
	require.NoError(t, err)
	require.NotNil(t, conn)

	before, err := f.sessionRepo.Get(context.Background(), testSessionID)
	require.NoError(t, err)

	f.provider.lastConn.rotate("access-2")

	after, err := f.sessionRepo.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-2", after.Auth.AccessToken)
	require.Equal(t, before.Auth.RefreshToken, after.Auth.RefreshToken)
	require.Equal(t, before.Auth.InstanceURL, after.Auth.InstanceURL)
	require.Equal(t, before.User, after.User)
}

func TestConnectionRequiresAuthenticatedSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Connection(context.Background(), "missing")
	require.ErrorIs(t, err, auth.ErrSessionAbsent)
}

func TestLoginURLCarriesState(t *testing.T) {
	f := setupTestFixture(t)

	loginURL := f.service.LoginURL("/dashboard")
	require.Contains(t, loginURL, "state=%2Fdashboard")
}
