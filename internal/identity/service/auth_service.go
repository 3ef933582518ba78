package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/audit"
	auditdomain "workbench-api/internal/audit/domain"
	"workbench-api/internal/security"
	sessiondomain "workbench-api/internal/session/domain"
	sessionrepo "workbench-api/internal/session/repository"
	"workbench-api/internal/telemetry/otel"
	userdomain "workbench-api/internal/user/domain"
	userrepo "workbench-api/internal/user/repository"
)

// Sentinel errors for auth service; the HTTP handler maps them to API errors.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRegistrationDisabled   = errors.New("registration is disabled")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUserNotFound           = errors.New("user not found")
)

const auditResource = "auth"

// ValidationError reports invalid input. Message is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// LoginResult holds the outcome of a successful Login.
type LoginResult struct {
	User         *userdomain.PublicUser
	RefreshToken string
	AccessToken  string
}

// RegisterInput is the registration form. All fields are trimmed before validation.
type RegisterInput struct {
	Email           string
	ConfirmEmail    string
	Password        string
	ConfirmPassword string
	Username        string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Upsert(ctx context.Context, userID, refreshToken string) error
	Get(ctx context.Context, userID string) (*sessiondomain.Session, error)
	Delete(ctx context.Context, userID string) error
}

// Options toggles optional behavior of the auth service.
type Options struct {
	RegistrationEnabled bool
}

// AuthService implements password login, access token refresh, logout and (optionally) registration.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	hasher      *security.Hasher
	tokens      *security.TokenIssuer
	auditLogger audit.AuditLogger
	recorder    *otel.AuthRecorder
	log         logrus.FieldLogger
	opts        Options
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger and recorder may be nil.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenIssuer,
	auditLogger audit.AuditLogger,
	recorder *otel.AuthRecorder,
	log logrus.FieldLogger,
	opts Options,
) *AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		tokens:      tokens,
		auditLogger: auditLogger,
		recorder:    recorder,
		log:         log,
		opts:        opts,
		now:         time.Now,
	}
}

// Login verifies email and password, stores a new refresh session for the user and returns both tokens.
// Tokens are returned only after the session upsert succeeds; a later login replaces the session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = userdomain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password is required")
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: load user: %w", err)
	}
	if user == nil {
		s.loginFailed(ctx, "", "unknown_email")
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify([]byte(password), user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: verify password: %w", err)
	}
	if !ok {
		s.loginFailed(ctx, user.ID, "bad_password")
		return nil, ErrInvalidCredentials
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: issue refresh token: %w", err)
	}
	if err := s.sessionRepo.Upsert(ctx, user.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("login: upsert session: %w", err)
	}
	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: issue access token: %w", err)
	}

	s.event(ctx, user.ID, auditdomain.ActionLoginSuccess, otel.OutcomeLoginSuccess, "")
	return &LoginResult{User: user.Safe(), RefreshToken: refreshToken, AccessToken: accessToken}, nil
}

// Refresh checks the refresh token against the user's session and returns a new access token.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.refreshDenied(ctx, "", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	sess, err := s.sessionRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrSessionNotFound) {
			s.refreshDenied(ctx, userID, err)
			return "", fmt.Errorf("%w: no session", ErrInvalidRefreshToken)
		}
		return "", fmt.Errorf("refresh: load session: %w", err)
	}
	if !security.DigestMatches(refreshToken, sess.RefreshTokenHash) {
		s.refreshDenied(ctx, userID, errors.New("superseded refresh token"))
		return "", fmt.Errorf("%w: superseded", ErrInvalidRefreshToken)
	}
	accessToken, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return "", fmt.Errorf("refresh: issue access token: %w", err)
	}
	s.event(ctx, userID, auditdomain.ActionRefresh, otel.OutcomeRefresh, "")
	return accessToken, nil
}

// Logout deletes the session of the refresh token's subject. Deleting an absent session succeeds.
// The token is not cross-checked against the stored digest, so any unexpired refresh token for the
// subject ends the current session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	if err := s.sessionRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("logout: delete session: %w", err)
	}
	s.event(ctx, userID, auditdomain.ActionLogout, otel.OutcomeLogout, "")
	return nil
}

// GetUser returns the public projection of the user with id, or ErrUserNotFound.
func (s *AuthService) GetUser(ctx context.Context, id string) (*userdomain.PublicUser, error) {
	u, err := s.userRepo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Safe(), nil
}

// RegistrationEnabled reports whether Register accepts new accounts.
func (s *AuthService) RegistrationEnabled() bool { return s.opts.RegistrationEnabled }

// Register creates a user from in. It returns ErrRegistrationDisabled unless enabled in Options.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.PublicUser, error) {
	if !s.opts.RegistrationEnabled {
		return nil, ErrRegistrationDisabled
	}
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	username := strings.TrimSpace(in.Username)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if email != strings.TrimSpace(in.ConfirmEmail) {
		return nil, invalid("Emails do not match")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if password != strings.TrimSpace(in.ConfirmPassword) {
		return nil, invalid("Passwords do not match")
	}
	email = userdomain.NormalizeEmail(email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("register: load user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("register: create user: %w", err)
	}
	s.event(ctx, user.ID, auditdomain.ActionRegister, otel.OutcomeRegistration, "")
	return user.Safe(), nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, reason string) {
	s.event(ctx, userID, auditdomain.ActionLoginFailure, otel.OutcomeLoginFailure, reason)
}

func (s *AuthService) refreshDenied(ctx context.Context, userID string, cause error) {
	if !security.IsRoutineTokenError(cause) {
		s.log.WithError(cause).WithField("user_id", userID).Debug("auth: refresh denied")
	}
	s.recorder.Record(ctx, otel.AuthEvent{Outcome: otel.OutcomeRefreshDenied, UserID: userID})
}

func (s *AuthService) event(ctx context.Context, userID, action, outcome, reason string) {
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, userID, action, auditResource, reason)
	}
	s.recorder.Record(ctx, otel.AuthEvent{Outcome: outcome, Reason: reason, UserID: userID})
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email must be a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return invalid("password must be at least 6 characters")
	}
	return nil
}
