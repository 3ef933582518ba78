package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workbench-api/internal/identity/service"
	"workbench-api/internal/server/middleware"
	userdomain "workbench-api/internal/user/domain"
)

var alice = &userdomain.PublicUser{ID: "user-1", Email: "a@x.com", Username: "alice", Roles: []string{}}

// fakeAuthService implements AuthService with canned answers.
type fakeAuthService struct {
	loginErr     error
	refreshErr   error
	logoutErr    error
	registerErr  error
	registration bool
	lastRefresh  string
	lastLogout   string
	lastRegister service.RegisterInput
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.LoginResult{User: alice, RefreshToken: "refresh-1", AccessToken: "access-1"}, nil
}

func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	f.lastRefresh = refreshToken
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "access-2", nil
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshToken string) error {
	f.lastLogout = refreshToken
	return f.logoutErr
}

func (f *fakeAuthService) GetUser(ctx context.Context, id string) (*userdomain.PublicUser, error) {
	if id != alice.ID {
		return nil, service.ErrUserNotFound
	}
	return alice, nil
}

func (f *fakeAuthService) Register(ctx context.Context, in service.RegisterInput) (*userdomain.PublicUser, error) {
	f.lastRegister = in
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &userdomain.PublicUser{ID: "user-2", Email: in.Email, Username: in.Username}, nil
}

func (f *fakeAuthService) RegistrationEnabled() bool { return f.registration }

// fakeRequireAuth attaches alice when the bearer is "Bearer good" and rejects otherwise.
func fakeRequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithCaller(r.Context(), alice)))
	})
}

func newRouter(svc *fakeAuthService) http.Handler {
	log, _ := logtest.NewNullLogger()
	r := chi.NewRouter()
	NewAuthHandler(svc, log).Routes(r, fakeRequireAuth)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestLogin(t *testing.T) {
	h := newRouter(&fakeAuthService{})
	rec := do(t, h, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"pw"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "refresh-1", body["refreshToken"])
	assert.Equal(t, "access-1", body["accessToken"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "user-1", user["id"])
	assert.NotContains(t, user, "passwordHash")
}

func TestLogin_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"bad credentials", `{"email":"a@x.com","password":"no"}`, service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password."},
		{"bad body", `{"email":`, nil, http.StatusBadRequest, "invalid request body"},
		{"unknown field", `{"email":"a@x.com","password":"pw","role":"admin"}`, nil, http.StatusBadRequest, "invalid request body"},
		{"validation", `{"email":"bad","password":"pw"}`, &service.ValidationError{Message: "email must be a valid email address"}, http.StatusBadRequest, "email must be a valid email address"},
		{"store fault", `{"email":"a@x.com","password":"pw"}`, errors.New("login: upsert session: timeout"), http.StatusInternalServerError, "Something went wrong, please try again later"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newRouter(&fakeAuthService{loginErr: tc.err})
			rec := do(t, h, http.MethodPost, "/auth/login", tc.body, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, message(t, rec))
		})
	}
}

func TestToken(t *testing.T) {
	svc := &fakeAuthService{}
	h := newRouter(svc)

	rec := do(t, h, http.MethodPost, "/auth/token", "", "Bearer refresh-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refresh-1", svc.lastRefresh)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"token": "access-2"}, body)
}

func TestToken_Invalid(t *testing.T) {
	h := newRouter(&fakeAuthService{refreshErr: service.ErrInvalidRefreshToken})

	for _, bearer := range []string{"", "Bearer stale"} {
		rec := do(t, h, http.MethodPost, "/auth/token", "", bearer)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Invalid token, please log in again", message(t, rec))
	}
}

func TestLogout(t *testing.T) {
	testCases := []struct {
		name    string
		bearer  string
		err     error
		status  int
		message string
	}{
		{"ok", "Bearer refresh-1", nil, http.StatusNoContent, ""},
		{"no token", "", nil, http.StatusUnauthorized, "Missing bearer token on authorization header"},
		{"empty token", "Bearer ", nil, http.StatusUnauthorized, "Missing bearer token on authorization header"},
		{"invalid token", "Bearer junk", service.ErrInvalidRefreshToken, http.StatusForbidden, "Invalid token, please log in again"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeAuthService{logoutErr: tc.err}
			rec := do(t, newRouter(svc), http.MethodPost, "/auth/logout", "", tc.bearer)
			assert.Equal(t, tc.status, rec.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, message(t, rec))
			} else {
				assert.Empty(t, rec.Body.String())
				assert.Equal(t, "refresh-1", svc.lastLogout)
			}
		})
	}
}

func TestMe(t *testing.T) {
	h := newRouter(&fakeAuthService{})

	rec := do(t, h, http.MethodGet, "/auth/me", "", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	var u userdomain.PublicUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, alice.ID, u.ID)

	rec = do(t, h, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Disabled(t *testing.T) {
	h := newRouter(&fakeAuthService{registration: false})

	rec := do(t, h, http.MethodPost, "/auth/register", `not even json`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Account creation is disabled for now", message(t, rec))
}

func TestRegister_Enabled(t *testing.T) {
	svc := &fakeAuthService{registration: true}
	h := newRouter(svc)
	body := `{"email":"n@x.com","confirmEmail":"n@x.com","password":"secret1","confirmPassword":"secret1","username":"newbie"}`

	rec := do(t, h, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "newbie", svc.lastRegister.Username)

	svc.registerErr = service.ErrEmailAlreadyRegistered
	rec = do(t, h, http.MethodPost, "/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "This email address is already in use", message(t, rec))
}

func TestGetUser(t *testing.T) {
	h := newRouter(&fakeAuthService{})

	rec := do(t, h, http.MethodGet, "/users/user-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Resource not found", message(t, rec))
}
