package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/security"
	userdomain "workbench-api/internal/user/domain"
)

const testUserID = "6f1c2a7e-6d1b-4d8e-9a43-0c2f9f5b7a10"

// fakeSessions implements SessionChecker.
type fakeSessions struct {
	mu   sync.Mutex
	live map[string]bool
	err  error
}

func (f *fakeSessions) HasLive(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.live[userID], nil
}

// fakeUsers implements UserLookup.
type fakeUsers struct {
	users map[string]*userdomain.User
	err   error
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

type authFixture struct {
	tokens   *security.TokenIssuer
	sessions *fakeSessions
	users    *fakeUsers
	hook     *logtest.Hook
	auth     *Authenticator
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f := &authFixture{
		tokens:   security.NewTestTokenIssuer(),
		sessions: &fakeSessions{live: map[string]bool{testUserID: true}},
		users: &fakeUsers{users: map[string]*userdomain.User{
			testUserID: {ID: testUserID, Email: "a@x.com", Username: "alice", PasswordHash: "$2a$10$secret"},
		}},
		hook: hook,
	}
	f.auth = NewAuthenticator(f.tokens, f.sessions, f.users, log, nil)
	return f
}

func (f *authFixture) bearer(t *testing.T) string {
	t.Helper()
	tok, err := f.tokens.IssueAccessToken(testUserID)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestBearerToken(t *testing.T) {
	testCases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer  abc", " abc", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Basic abc", "", false},
		{"", "", false},
		{"Bearerabc", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.header, func(t *testing.T) {
			tok, ok := BearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, tok)
		})
	}
}

func TestAuthenticate_Valid(t *testing.T) {
	f := newAuthFixture(t)

	for _, required := range []bool{true, false} {
		res := f.auth.Authenticate(context.Background(), f.bearer(t), required)
		require.Equal(t, Authenticated, res.State)
		assert.Equal(t, testUserID, res.Caller.ID)
		assert.NoError(t, res.Err)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	expired := func(f *authFixture) string {
		past := f.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
		tok, _ := past.IssueAccessToken(testUserID)
		return "Bearer " + tok
	}
	refresh := func(f *authFixture) string {
		tok, _ := f.tokens.IssueRefreshToken(testUserID)
		return "Bearer " + tok
	}

	testCases := []struct {
		name     string
		header   func(*authFixture) string
		setup    func(*authFixture)
		wantKind apierror.Kind
	}{
		{"no header", func(*authFixture) string { return "" }, nil, apierror.NoToken},
		{"wrong scheme", func(*authFixture) string { return "Token abc" }, nil, apierror.NoToken},
		{"garbage token", func(*authFixture) string { return "Bearer not-a-jwt" }, nil, apierror.InvalidToken},
		{"expired token", expired, nil, apierror.InvalidToken},
		{"refresh token as access", refresh, nil, apierror.InvalidToken},
		{"revoked session", nil, func(f *authFixture) { f.sessions.live = map[string]bool{} }, apierror.InvalidToken},
		{"user gone", nil, func(f *authFixture) { f.users.users = nil }, apierror.InvalidToken},
		{"session store fault", nil, func(f *authFixture) { f.sessions.err = errors.New("timeout") }, apierror.Generic},
		{"user store fault", nil, func(f *authFixture) { f.users.err = errors.New("timeout") }, apierror.Generic},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			header := f.bearer(t)
			if tc.header != nil {
				header = tc.header(f)
			}

			res := f.auth.Authenticate(context.Background(), header, true)
			require.Equal(t, Rejected, res.State)
			assert.Nil(t, res.Caller)
			assert.Equal(t, tc.wantKind, apierror.KindOf(res.Err))

			opt := f.auth.Authenticate(context.Background(), header, false)
			assert.Equal(t, Anonymous, opt.State, "optional mode must degrade to anonymous")
			assert.Nil(t, opt.Caller)
			assert.NoError(t, opt.Err)
		})
	}
}

func TestAuthenticate_Logging(t *testing.T) {
	t.Run("expired is not logged", func(t *testing.T) {
		f := newAuthFixture(t)
		past := f.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
		tok, _ := past.IssueAccessToken(testUserID)

		f.auth.Authenticate(context.Background(), "Bearer "+tok, true)
		assert.Empty(t, f.hook.AllEntries())
	})
	t.Run("malformed is logged at debug", func(t *testing.T) {
		f := newAuthFixture(t)
		f.auth.Authenticate(context.Background(), "Bearer junk", true)
		require.Len(t, f.hook.AllEntries(), 1)
		assert.Equal(t, logrus.DebugLevel, f.hook.LastEntry().Level)
	})
	t.Run("store fault is logged at error in both modes", func(t *testing.T) {
		f := newAuthFixture(t)
		f.sessions.err = errors.New("timeout")
		f.auth.Authenticate(context.Background(), f.bearer(t), false)
		require.Len(t, f.hook.AllEntries(), 1)
		assert.Equal(t, logrus.ErrorLevel, f.hook.LastEntry().Level)
	})
}

func TestMiddleware_Required(t *testing.T) {
	f := newAuthFixture(t)
	var seen *userdomain.PublicUser
	h := f.auth.Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		req.Header.Set("Authorization", f.bearer(t))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, testUserID, seen.ID)
	})

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body apierror.Body
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Missing bearer token on authorization header", body.Message)
	})

	t.Run("revoked after logout", func(t *testing.T) {
		header := f.bearer(t)
		f.sessions.mu.Lock()
		delete(f.sessions.live, testUserID)
		f.sessions.mu.Unlock()

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body apierror.Body
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Invalid token, please log in again", body.Message)
	})
}

func TestMiddleware_Optional(t *testing.T) {
	f := newAuthFixture(t)
	var got string
	h := f.auth.Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", got)

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", got)

	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", f.bearer(t))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, got)
}

func TestRequireCaller(t *testing.T) {
	_, err := RequireCaller(context.Background())
	assert.Equal(t, apierror.InvalidToken, apierror.KindOf(err))

	c, err := RequireCaller(WithCaller(context.Background(), &userdomain.PublicUser{ID: "u"}))
	require.NoError(t, err)
	assert.Equal(t, "u", c.ID)
}
