package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/security"
	"workbench-api/internal/telemetry/otel"
	userdomain "workbench-api/internal/user/domain"
)

const bearerPrefix = "Bearer "

// TokenVerifier verifies access tokens and returns their subject.
type TokenVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

// SessionChecker reports whether a subject still has a live session.
type SessionChecker interface {
	HasLive(ctx context.Context, userID string) (bool, error)
}

// UserLookup resolves a subject to a user. A missing user is (nil, nil).
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// State is the terminal state of request authentication.
type State int

const (
	Anonymous State = iota
	Authenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

// Result is the outcome of Authenticate. Caller is set only when State is Authenticated;
// Err is an *apierror.Error only when State is Rejected.
type Result struct {
	State  State
	Caller *userdomain.PublicUser
	Err    error
}

// Authenticator resolves the caller of a request from its bearer access token.
// It never mutates session or user state.
type Authenticator struct {
	tokens   TokenVerifier
	sessions SessionChecker
	users    UserLookup
	log      logrus.FieldLogger
	recorder *otel.AuthRecorder
}

// NewAuthenticator returns an Authenticator. recorder may be nil.
func NewAuthenticator(tokens TokenVerifier, sessions SessionChecker, users UserLookup, log logrus.FieldLogger, recorder *otel.AuthRecorder) *Authenticator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authenticator{tokens: tokens, sessions: sessions, users: users, log: log, recorder: recorder}
}

// BearerToken returns the token after the exact "Bearer " prefix, and whether one was present.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	return token, token != ""
}

// Authenticate runs the authentication steps for the Authorization header value.
// In optional mode (required false) every failure degrades to Anonymous.
func (a *Authenticator) Authenticate(ctx context.Context, header string, required bool) Result {
	reject := func(k apierror.Kind, cause error) Result {
		if !required {
			return Result{State: Anonymous}
		}
		return Result{State: Rejected, Err: apierror.Wrap(k, cause)}
	}

	token, ok := BearerToken(header)
	if !ok {
		return reject(apierror.NoToken, nil)
	}

	subject, err := a.tokens.VerifyAccessToken(token)
	if err != nil {
		if !security.IsRoutineTokenError(err) {
			a.log.WithError(err).Debug("auth: malformed access token")
		}
		return reject(apierror.InvalidToken, err)
	}

	live, err := a.sessions.HasLive(ctx, subject)
	if err != nil {
		a.log.WithError(err).WithField("user_id", subject).Error("auth: session lookup failed")
		return reject(apierror.Generic, err)
	}
	if !live {
		return reject(apierror.InvalidToken, errors.New("no live session"))
	}

	u, err := a.users.GetByID(ctx, subject)
	if err != nil {
		a.log.WithError(err).WithField("user_id", subject).Error("auth: user lookup failed")
		return reject(apierror.Generic, err)
	}
	caller := u.Safe()
	if caller == nil {
		return reject(apierror.InvalidToken, errors.New("subject has no user"))
	}
	return Result{State: Authenticated, Caller: caller}
}

// Middleware gates a route. Required routes reject requests without an authenticated caller;
// optional routes pass through anonymously. An authenticated caller is attached to the context.
func (a *Authenticator) Middleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.Authenticate(r.Context(), r.Header.Get("Authorization"), required)
			a.record(r, res)
			switch res.State {
			case Rejected:
				apierror.Write(w, res.Err)
				return
			case Authenticated:
				r = r.WithContext(WithCaller(r.Context(), res.Caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) record(r *http.Request, res Result) {
	ev := otel.AuthEvent{Outcome: res.State.String(), Route: r.URL.Path}
	switch res.State {
	case Authenticated:
		ev.UserID = res.Caller.ID
	case Rejected:
		ev.Reason = apierror.KindOf(res.Err).String()
		if apierror.KindOf(res.Err) == apierror.Generic {
			ev.Outcome = otel.OutcomeStoreFault
		}
	}
	a.recorder.Record(r.Context(), ev)
}

// RequireCaller returns the caller in ctx, or an InvalidToken error when the request is anonymous.
// Handlers behind Middleware(true) always have a caller.
func RequireCaller(ctx context.Context) (*userdomain.PublicUser, error) {
	c, ok := CallerFrom(ctx)
	if !ok {
		return nil, apierror.New(apierror.InvalidToken)
	}
	return c, nil
}
